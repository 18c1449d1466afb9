package application

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	orderdomain "github.com/wyfcoding/marketsettlement/internal/order/domain"
	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
)

type fakePeriodRepo struct {
	mu        sync.Mutex
	seq       uint
	periods   map[uint]*domain.SettlementPeriod
	denyClaim bool
}

func newFakePeriodRepo() *fakePeriodRepo {
	return &fakePeriodRepo{periods: map[uint]*domain.SettlementPeriod{}}
}

func (r *fakePeriodRepo) Save(_ context.Context, period *domain.SettlementPeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if period.ID == 0 {
		r.seq++
		period.ID = r.seq
	}
	r.periods[period.ID] = period
	return nil
}

func (r *fakePeriodRepo) Get(_ context.Context, id uint) (*domain.SettlementPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	period, ok := r.periods[id]
	if !ok {
		return nil, nil
	}
	copied := *period
	return &copied, nil
}

func (r *fakePeriodRepo) ClaimForCalculation(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	period, ok := r.periods[id]
	if !ok || r.denyClaim || period.Status != domain.PeriodStatusPreparing {
		return false, nil
	}
	period.Status = domain.PeriodStatusProcessing
	return true, nil
}

func (r *fakePeriodRepo) SetStatus(_ context.Context, id uint, status domain.PeriodStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if period, ok := r.periods[id]; ok {
		period.Status = status
	}
	return nil
}

func (r *fakePeriodRepo) status(id uint) domain.PeriodStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.periods[id].Status
}

type fakeSettlementRepo struct {
	mu           sync.Mutex
	seq          uint
	settlements  map[uint]*domain.Settlement
	saveErr      error
	productQuery domain.SellerProductQuery
}

func newFakeSettlementRepo() *fakeSettlementRepo {
	return &fakeSettlementRepo{settlements: map[uint]*domain.Settlement{}}
}

func (r *fakeSettlementRepo) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeSettlementRepo) Save(_ context.Context, settlement *domain.Settlement) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if settlement.ID == 0 {
		r.seq++
		settlement.ID = r.seq
	}
	r.settlements[settlement.ID] = settlement
	return nil
}

func (r *fakeSettlementRepo) Update(_ context.Context, settlement *domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements[settlement.ID] = settlement
	return nil
}

func (r *fakeSettlementRepo) Get(_ context.Context, id uint) (*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	settlement, ok := r.settlements[id]
	if !ok {
		return nil, nil
	}
	copied := *settlement
	return &copied, nil
}

func (r *fakeSettlementRepo) FindByIDs(_ context.Context, ids []uint) ([]*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Settlement
	for _, id := range ids {
		if settlement, ok := r.settlements[id]; ok {
			out = append(out, settlement)
		}
	}
	return out, nil
}

func (r *fakeSettlementRepo) DeleteByIDs(_ context.Context, ids []uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := r.settlements[id]; ok {
			delete(r.settlements, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeSettlementRepo) List(_ context.Context, _ domain.ListFilter) ([]*domain.Settlement, int64, error) {
	return nil, 0, nil
}

func (r *fakeSettlementRepo) ListBySeller(_ context.Context, _ string, _ domain.SettlementStatus, _, _ int) ([]*domain.Settlement, int64, error) {
	return nil, 0, nil
}

func (r *fakeSettlementRepo) AggregateSellerProducts(_ context.Context, query domain.SellerProductQuery) ([]*domain.ProductAggregate, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.productQuery = query
	return nil, 0, nil
}

func (r *fakeSettlementRepo) SummarizeSeller(_ context.Context, sellerID string) (*domain.SellerSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary := &domain.SellerSummary{
		SellerID:              sellerID,
		TotalSettlementAmount: decimal.Zero,
		TotalCommission:       decimal.Zero,
	}
	for _, settlement := range r.settlements {
		if settlement.SellerID != sellerID {
			continue
		}
		summary.TotalCount++
		switch settlement.Status {
		case domain.StatusPending:
			summary.PendingCount++
		case domain.StatusCalculating:
			summary.CalculatingCount++
		case domain.StatusCompleted:
			summary.CompletedCount++
			summary.TotalSettlementAmount = summary.TotalSettlementAmount.Add(settlement.FinalSettlementAmount)
			summary.TotalCommission = summary.TotalCommission.Add(settlement.TotalCommission)
		case domain.StatusOnHold:
			summary.OnHoldCount++
		}
	}
	return summary, nil
}

func (r *fakeSettlementRepo) bySeller(sellerID string) *domain.Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, settlement := range r.settlements {
		if settlement.SellerID == sellerID {
			return settlement
		}
	}
	return nil
}

type fakeOrderRepo struct {
	orders  []*orderdomain.Order
	sellers map[string]*orderdomain.Seller
}

func (r *fakeOrderRepo) FindSettleableInRange(_ context.Context, start, end time.Time) ([]*orderdomain.Order, error) {
	var out []*orderdomain.Order
	for _, order := range r.orders {
		if order.OrderedAt.Before(start) || order.OrderedAt.After(end) {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *fakeOrderRepo) GetSeller(_ context.Context, sellerID string) (*orderdomain.Seller, error) {
	return r.sellers[sellerID], nil
}

// fakeResolver 固定费率表：优先 (seller, category) 精确命中，其次 seller 命中，最后兜底
type fakeResolver struct {
	sellerRates   map[string]decimal.Decimal
	categoryRates map[string]decimal.Decimal // key: seller + "/" + category
	fallback      decimal.Decimal
}

func (r *fakeResolver) ResolveRate(_ context.Context, sellerID, categoryCode string) (decimal.Decimal, error) {
	if categoryCode != "" {
		if rate, ok := r.categoryRates[sellerID+"/"+categoryCode]; ok {
			return rate, nil
		}
	}
	if rate, ok := r.sellerRates[sellerID]; ok {
		return rate, nil
	}
	return r.fallback, nil
}

type publishedEvent struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key string, event any) error {
	return p.record(topic, key, event)
}

func (p *fakePublisher) PublishInTx(_ context.Context, _ any, topic string, key string, event any) error {
	return p.record(topic, key, event)
}

func (p *fakePublisher) record(topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

func (p *fakePublisher) countByTopic(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.topic == topic {
			n++
		}
	}
	return n
}

type fakeSummaryRepo struct {
	mu        sync.Mutex
	summaries map[string]*domain.SellerSummary
}

func newFakeSummaryRepo() *fakeSummaryRepo {
	return &fakeSummaryRepo{summaries: map[string]*domain.SellerSummary{}}
}

func (r *fakeSummaryRepo) Save(_ context.Context, summary *domain.SellerSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[summary.SellerID] = summary
	return nil
}

func (r *fakeSummaryRepo) Get(_ context.Context, sellerID string) (*domain.SellerSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaries[sellerID], nil
}

func (r *fakeSummaryRepo) Delete(_ context.Context, sellerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.summaries, sellerID)
	return nil
}
