package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

const hospitalPriceList = `LABORATORY SERVICES,
Complete Blood Count,"6,000"
Malaria Rapid Test,4000
PHARMACY,
Paracetamol 500mg Tablets,100
Broken Row,abc
`

func newTestPriceService(t *testing.T, env *testEnv) *PriceService {
	t.Helper()
	return NewPriceService(env.prices, env.audit, env.metrics, zap.NewNop())
}

func TestImportPriceList(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	svc := newTestPriceService(t, env)

	res, err := svc.ImportPriceList(context.Background(), strings.NewReader(hospitalPriceList), uuid.New(), "admin")
	if err != nil {
		t.Fatalf("ImportPriceList: %v", err)
	}
	if res.Parsed != 3 || res.Created != 1 || res.Updated != 2 || len(res.Rejected) != 1 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(res.Rejected[0], "line 6") {
		t.Errorf("rejection %q does not name the line", res.Rejected[0])
	}

	catalog, _ := env.prices.Catalog(context.Background())
	cbc, ok := catalog.FindByName("Complete Blood Count", pricing.CategoryLabTest)
	if !ok || cbc.Price != 6000 || cbc.SortOrder != 0 {
		t.Errorf("updated entry = %+v", cbc)
	}
	if cbc.Metadata["section"] != "LABORATORY SERVICES" {
		t.Errorf("metadata = %+v", cbc.Metadata)
	}
	if _, ok := catalog.FindByName("Malaria Rapid Test", pricing.CategoryLabTest); !ok {
		t.Error("new entry was not created")
	}

	for result, want := range map[string]float64{"created": 1, "updated": 2, "rejected": 1} {
		if got := testutil.ToFloat64(env.metrics.PricesImported.WithLabelValues(result)); got != want {
			t.Errorf("prices_imported_total{result=%s} = %v, want %v", result, got, want)
		}
	}

	env.flushAudit()
	if actions := env.auditRepo.actions(); len(actions) != 1 || actions[0] != "import service_price" {
		t.Errorf("audit entries = %v", actions)
	}
}

func TestImportPriceList_StoreErrorsRejectRow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.prices.upsertErr = map[string]error{"Malaria Rapid Test": errors.New("deadlock detected")}
	svc := newTestPriceService(t, env)

	res, err := svc.ImportPriceList(context.Background(), strings.NewReader(hospitalPriceList), uuid.New(), "admin")
	if err != nil {
		t.Fatalf("ImportPriceList: %v", err)
	}
	if res.Created != 2 || len(res.Rejected) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestImportPriceList_UnrepresentablePricesNeverReachCatalog(t *testing.T) {
	env := newTestEnv(t, nil)
	svc := newTestPriceService(t, env)

	input := `LABORATORY SERVICES,
"Full Blood Picture","NaN"
"Urinalysis","Inf"
"Culture","1e30"
Malaria Rapid Test,4000
`
	res, err := svc.ImportPriceList(context.Background(), strings.NewReader(input), uuid.New(), "admin")
	if err != nil {
		t.Fatalf("ImportPriceList: %v", err)
	}
	if res.Created != 1 || len(res.Rejected) != 3 {
		t.Errorf("result = %+v", res)
	}

	catalog, _ := env.prices.Catalog(context.Background())
	if len(catalog) != 1 {
		t.Fatalf("catalog has %d entries, want 1", len(catalog))
	}
	for _, p := range catalog {
		if p.Price < 0 {
			t.Errorf("%s stored with negative price %d", p.ServiceName, p.Price)
		}
	}
}

func TestImportPriceList_NothingParsed(t *testing.T) {
	env := newTestEnv(t, nil)
	svc := newTestPriceService(t, env)

	_, err := svc.ImportPriceList(context.Background(), strings.NewReader("Bandage,free\n"), uuid.New(), "admin")
	if !errors.Is(err, pricing.ErrMalformedPriceRow) {
		t.Errorf("err = %v, want ErrMalformedPriceRow", err)
	}
}

func TestMatchPrice(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	svc := newTestPriceService(t, env)

	m, err := svc.MatchPrice(context.Background(), "COMPLETE BLOOD COUNT", pricing.AnyCategory)
	if err != nil {
		t.Fatalf("MatchPrice: %v", err)
	}
	if m.Price.Price != 5000 || m.Score != pricing.ScoreExact {
		t.Errorf("match = %+v", m)
	}

	m, err = svc.MatchPrice(context.Background(), "amoxicillin", pricing.CategoryMedication)
	if err != nil || m.Score != pricing.ScoreContains {
		t.Errorf("match = %+v, %v", m, err)
	}

	if _, err := svc.MatchPrice(context.Background(), "unrelated gibberish", pricing.AnyCategory); !errors.Is(err, pricing.ErrPriceNotFound) {
		t.Errorf("err = %v, want ErrPriceNotFound", err)
	}
	if _, err := svc.MatchPrice(context.Background(), "x-ray", "imaging"); !errors.Is(err, pricing.ErrInvalidCategory) {
		t.Errorf("err = %v, want ErrInvalidCategory", err)
	}
}

func TestCreateAndUpdatePrice(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	svc := newTestPriceService(t, env)
	ctx := context.Background()

	tests := []struct {
		name    string
		cmd     pricing.CreatePriceCommand
		wantErr error
	}{
		{"punctuation name", pricing.CreatePriceCommand{Category: pricing.CategoryProcedure, ServiceName: "--"}, pricing.ErrEmptyServiceName},
		{"unknown category", pricing.CreatePriceCommand{Category: "imaging", ServiceName: "CT Head"}, pricing.ErrInvalidCategory},
		{"duplicate", pricing.CreatePriceCommand{Category: pricing.CategoryRadiology, ServiceName: "X-Ray Chest", Price: 9000}, pricing.ErrDuplicateService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreatePrice(ctx, &tt.cmd, uuid.New(), "admin", ""); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	created, err := svc.CreatePrice(ctx, &pricing.CreatePriceCommand{
		Category: pricing.CategoryRadiology, ServiceName: "  CT Head  ", Price: 90000,
	}, uuid.New(), "admin", "")
	if err != nil {
		t.Fatalf("CreatePrice: %v", err)
	}
	if created.ServiceName != "CT Head" {
		t.Errorf("name not trimmed: %q", created.ServiceName)
	}

	negative := int64(-1)
	if _, err := svc.UpdatePrice(ctx, created.ID, &pricing.UpdatePriceCommand{Price: &negative}, uuid.New(), "admin", ""); !errors.Is(err, pricing.ErrNegativePrice) {
		t.Errorf("err = %v, want ErrNegativePrice", err)
	}
	price := int64(95000)
	updated, err := svc.UpdatePrice(ctx, created.ID, &pricing.UpdatePriceCommand{Price: &price}, uuid.New(), "admin", "")
	if err != nil || updated.Price != 95000 {
		t.Errorf("UpdatePrice = %+v, %v", updated, err)
	}

	if err := svc.DeletePrice(ctx, created.ID, uuid.New(), "admin", ""); err != nil {
		t.Fatalf("DeletePrice: %v", err)
	}
	if _, err := svc.GetPrice(ctx, created.ID); !errors.Is(err, pricing.ErrPriceNotFound) {
		t.Errorf("err = %v, want ErrPriceNotFound", err)
	}
}

func TestListPrices_Paging(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	svc := newTestPriceService(t, env)

	page, err := svc.ListPrices(context.Background(), &pricing.ListPricesQuery{Category: pricing.CategoryMedication, PageSize: 1000})
	if err != nil {
		t.Fatalf("ListPrices: %v", err)
	}
	if page.PageSize != 50 || page.Page != 1 || page.TotalCount != 2 {
		t.Errorf("page = %+v", page)
	}
	if _, err := svc.ListPrices(context.Background(), &pricing.ListPricesQuery{Category: "drugs"}); !errors.Is(err, pricing.ErrInvalidCategory) {
		t.Errorf("err = %v, want ErrInvalidCategory", err)
	}
}
