package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RouterDeps struct {
	Config  *config.Config
	JWT     *auth.JWTManager
	Metrics *metrics.Collector
	Log     *zap.Logger

	// DB backs the readiness probe. Nil skips the database check.
	DB *gorm.DB

	Prices    *PriceHandler
	Billing   *BillingHandler
	Insurance *InsuranceHandler
	Clinical  *ClinicalHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		RequestID(),
		Logger(d.Log),
		Recovery(),
		CORS(d.Config.CORS),
		Metrics(d.Metrics),
		Tracing(d.Config.App.Name),
	)

	r.GET("/healthz", healthz(d.DB))
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1", AuthMiddleware(d.JWT))

	staff := RequireRole(domain.RoleAdmin, domain.RoleBilling, domain.RoleReceptionist, domain.RoleDoctor, domain.RoleNurse)
	billingStaff := RequireRole(domain.RoleAdmin, domain.RoleBilling)
	clinicians := RequireRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse)

	prices := api.Group("/prices")
	{
		prices.GET("", staff, d.Prices.List)
		prices.GET("/match", staff, d.Prices.Match)
		prices.GET("/:id", staff, d.Prices.Get)
		prices.POST("", billingStaff, d.Prices.Create)
		prices.POST("/import", billingStaff, d.Prices.Import)
		prices.PUT("/:id", billingStaff, d.Prices.Update)
		prices.DELETE("/:id", billingStaff, d.Prices.Delete)
	}

	billingGroup := api.Group("/billing")
	{
		billingGroup.GET("/consultation-cost", staff, d.Billing.ConsultationCost)
		billingGroup.GET("/autobilling", billingStaff, d.Billing.GetAutobilling)
		billingGroup.PATCH("/autobilling", RequireRole(domain.RoleAdmin), d.Billing.UpdateAutobilling)
		billingGroup.POST("/autobilling/sweep", billingStaff, d.Billing.Sweep)
	}

	bills := api.Group("/bills", billingStaff)
	{
		bills.POST("", d.Billing.Assemble)
		bills.GET("/:id", d.Billing.Get)
		bills.POST("/:id/items", d.Billing.AddItem)
		bills.PATCH("/:id/status", d.Billing.UpdateStatus)
	}

	claims := api.Group("/insurance-claims", billingStaff)
	{
		claims.POST("", d.Insurance.Submit)
		claims.GET("/:id", d.Insurance.Get)
		claims.PATCH("/:id/status", d.Insurance.UpdateStatus)
	}

	patients := api.Group("/patients")
	{
		patients.POST("", RequireRole(domain.RoleAdmin, domain.RoleReceptionist), d.Clinical.CreatePatient)
		patients.GET("/:id", staff, d.Clinical.GetPatient)
		patients.GET("/:id/bills", billingStaff, d.Billing.ListForPatient)
	}

	api.POST("/appointments", RequireRole(domain.RoleAdmin, domain.RoleReceptionist, domain.RoleDoctor), d.Clinical.CreateAppointment)
	api.GET("/appointments/:id", staff, d.Clinical.GetAppointment)
	api.POST("/medical-records", clinicians, d.Clinical.CreateRecord)
	api.GET("/medical-records/:id", clinicians, d.Clinical.GetRecord)
	api.POST("/prescriptions/:id/dispense", RequireRole(domain.RoleAdmin, domain.RolePharmacist), d.Clinical.DispensePrescription)
	api.POST("/lab-orders/:id/complete", RequireRole(domain.RoleAdmin, domain.RoleLabTechnician, domain.RoleDoctor), d.Clinical.CompleteLabOrder)

	return r
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
