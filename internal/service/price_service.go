package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PriceService struct {
	repo     pricing.Repository
	auditSvc *AuditService
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewPriceService(repo pricing.Repository, auditSvc *AuditService, m *metrics.Collector, log *zap.Logger) *PriceService {
	return &PriceService{repo: repo, auditSvc: auditSvc, metrics: m, log: log}
}

type PagedPrices struct {
	Prices     []*pricing.ServicePrice `json:"prices"`
	TotalCount int64                   `json:"total_count"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
}

func (s *PriceService) ListPrices(ctx context.Context, q *pricing.ListPricesQuery) (*PagedPrices, error) {
	if q.Category != pricing.AnyCategory && !q.Category.IsValid() {
		return nil, pricing.ErrInvalidCategory
	}
	if q.PageSize <= 0 || q.PageSize > 200 {
		q.PageSize = 50
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	prices, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing prices: %w", err)
	}
	return &PagedPrices{Prices: prices, TotalCount: total, Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *PriceService) GetPrice(ctx context.Context, id uuid.UUID) (*pricing.ServicePrice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PriceService) CreatePrice(ctx context.Context, cmd *pricing.CreatePriceCommand, callerID uuid.UUID, callerRole string, ip string) (*pricing.ServicePrice, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	if !cmd.Category.IsValid() {
		return nil, pricing.ErrInvalidCategory
	}
	name := strings.TrimSpace(cmd.ServiceName)
	if pricing.Normalize(name) == "" {
		return nil, pricing.ErrEmptyServiceName
	}

	p := &pricing.ServicePrice{
		Code:        strings.TrimSpace(cmd.Code),
		Category:    cmd.Category,
		ServiceName: name,
		Price:       cmd.Price,
		Description: cmd.Description,
		Metadata:    cmd.Metadata,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating price: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "create", ResourceType: "service_price", ResourceID: p.ID.String(), IPAddress: ip,
		Changes: map[string]any{"service_name": p.ServiceName, "price": p.Price},
	})

	return p, nil
}

func (s *PriceService) UpdatePrice(ctx context.Context, id uuid.UUID, cmd *pricing.UpdatePriceCommand, callerID uuid.UUID, callerRole string, ip string) (*pricing.ServicePrice, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if cmd.Code != nil {
		p.Code = strings.TrimSpace(*cmd.Code)
		changes["code"] = p.Code
	}
	if cmd.Category != nil {
		if !cmd.Category.IsValid() {
			return nil, pricing.ErrInvalidCategory
		}
		p.Category = *cmd.Category
		changes["category"] = p.Category
	}
	if cmd.ServiceName != nil {
		name := strings.TrimSpace(*cmd.ServiceName)
		if pricing.Normalize(name) == "" {
			return nil, pricing.ErrEmptyServiceName
		}
		p.ServiceName = name
		changes["service_name"] = name
	}
	if cmd.Price != nil {
		if *cmd.Price < 0 {
			return nil, pricing.ErrNegativePrice
		}
		changes["price"] = map[string]int64{"from": p.Price, "to": *cmd.Price}
		p.Price = *cmd.Price
	}
	if cmd.Description != nil {
		p.Description = *cmd.Description
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("updating price: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "update", ResourceType: "service_price", ResourceID: id.String(), IPAddress: ip,
		Changes: changes,
	})

	return p, nil
}

func (s *PriceService) DeletePrice(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "delete", ResourceType: "service_price", ResourceID: id.String(), IPAddress: ip,
	})
	return nil
}

type PriceMatch struct {
	Price pricing.ServicePrice `json:"price"`
	Score int                  `json:"score"`
}

// MatchPrice finds the price list entry a free-text name would be billed at.
// An empty category searches the whole list.
func (s *PriceService) MatchPrice(ctx context.Context, name string, category pricing.Category) (*PriceMatch, error) {
	if category != pricing.AnyCategory && !category.IsValid() {
		return nil, pricing.ErrInvalidCategory
	}

	catalog, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading price list: %w", err)
	}

	p, ok := catalog.FindBestPrice(name, category)
	if !ok {
		return nil, pricing.ErrPriceNotFound
	}
	return &PriceMatch{
		Price: p,
		Score: pricing.Score(pricing.Normalize(p.ServiceName), pricing.Normalize(name)),
	}, nil
}

type ImportResult struct {
	Parsed   int      `json:"parsed"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Rejected []string `json:"rejected,omitempty"`
}

// ImportPriceList upserts every row of a hospital price list CSV. Rows that
// fail to parse or store are reported and skipped; the rest still import.
// Entries keep their position in the file as catalog order.
func (s *PriceService) ImportPriceList(ctx context.Context, r io.Reader, callerID uuid.UUID, callerRole string) (*ImportResult, error) {
	entries, parseErrs := pricing.ParsePriceList(r)
	if len(entries) == 0 && len(parseErrs) > 0 {
		return nil, fmt.Errorf("%w: %v", pricing.ErrMalformedPriceRow, parseErrs[0])
	}

	res := &ImportResult{Parsed: len(entries)}
	for _, err := range parseErrs {
		res.Rejected = append(res.Rejected, err.Error())
		s.count("rejected")
	}

	for i, e := range entries {
		if e.Price < 0 {
			res.Rejected = append(res.Rejected, fmt.Sprintf("line %d: %v", e.Line, pricing.ErrNegativePrice))
			s.count("rejected")
			continue
		}
		p := &pricing.ServicePrice{
			Code:        e.Code,
			Category:    e.Category,
			ServiceName: e.ServiceName,
			Price:       e.Price,
			SortOrder:   i,
			Metadata:    map[string]any{"section": e.Section, "source_line": e.Line},
		}
		created, err := s.repo.Upsert(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Rejected = append(res.Rejected, fmt.Sprintf("line %d: %v", e.Line, err))
			s.count("rejected")
			continue
		}
		if created {
			res.Created++
			s.count("created")
		} else {
			res.Updated++
			s.count("updated")
		}
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "import", ResourceType: "service_price",
		Changes: map[string]any{"created": res.Created, "updated": res.Updated, "rejected": len(res.Rejected)},
	})

	s.log.Info("price list imported",
		zap.Int("parsed", res.Parsed),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

func (s *PriceService) count(result string) {
	if s.metrics != nil {
		s.metrics.PricesImported.WithLabelValues(result).Inc()
	}
}
