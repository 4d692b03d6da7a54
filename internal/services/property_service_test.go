package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/tbourn/go-realty-backend/internal/deals"
	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/events"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

func TestCloseDeal_SaleOnDualPurposeListing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Bruna", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSaleRent, Status: domain.StatusApproved,
		Price: 300000, PriceSale: f64(300000), PriceRent: f64(2000), BrokerID: &broker.ID,
	})

	svc := NewPropertyService(db, nil)
	sum, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "sale", CommissionRate: "6"})
	if err != nil {
		t.Fatalf("CloseDeal: %v", err)
	}

	got := sum.Property
	if got.Status != domain.StatusSold {
		t.Fatalf("status = %q; want sold", got.Status)
	}
	if got.SaleValue == nil || *got.SaleValue != 300000 {
		t.Fatalf("sale_value = %v; want 300000", got.SaleValue)
	}
	if got.CommissionValue == nil || *got.CommissionValue != 18000 {
		t.Fatalf("commission_value = %v; want 18000", got.CommissionValue)
	}
	if got.CommissionRate == nil || *got.CommissionRate != 6 {
		t.Fatalf("commission_rate = %v; want 6", got.CommissionRate)
	}

	n, err := repo.CountSales(ctx, db, p.ID)
	if err != nil || n != 1 {
		t.Fatalf("sales = %d, %v; want 1", n, err)
	}
	sale, err := repo.LatestSale(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("LatestSale: %v", err)
	}
	if sale.DealType != domain.DealSale || sale.SalePrice != 300000 || sale.CommissionAmount != 18000 {
		t.Fatalf("unexpected sale row: %+v", sale)
	}
	if sale.RecurrenceInterval != domain.RecurrenceNone || sale.IsRecurring {
		t.Fatalf("recurrence = %q recurring=%v; want none/false", sale.RecurrenceInterval, sale.IsRecurring)
	}
}

func TestCloseDeal_TwiceKeepsOneSaleWithLatestTerms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Bruno", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	first, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "venda", Amount: "1000"})
	if err != nil {
		t.Fatalf("first close: %v", err)
	}
	second, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "sale", Amount: "1200", CommissionRate: "4"})
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if first.Sale.ID != second.Sale.ID {
		t.Fatalf("sale row identity changed: %d -> %d", first.Sale.ID, second.Sale.ID)
	}
	if n, _ := repo.CountSales(ctx, db, p.ID); n != 1 {
		t.Fatalf("sales = %d; want 1", n)
	}
	sale, _ := repo.LatestSale(ctx, db, p.ID)
	if sale.SalePrice != 1200 || sale.CommissionRate != 4 || sale.CommissionAmount != 48 {
		t.Fatalf("sale not updated to latest terms: %+v", sale)
	}
}

func TestCloseDeal_DefaultRateAndStoredRate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Bia", domain.RoleBroker, true)
	svc := NewPropertyService(db, nil)

	plain := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	sum, err := svc.CloseDeal(ctx, plain.ID, broker.ID, DealInput{Type: "sale"})
	if err != nil {
		t.Fatalf("CloseDeal: %v", err)
	}
	if sum.Sale.CommissionRate != deals.DefaultCommissionRate || sum.Sale.CommissionAmount != 50 {
		t.Fatalf("default rate not applied: %+v", sum.Sale)
	}

	stored := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000,
		CommissionRate: f64(3), BrokerID: &broker.ID,
	})
	sum, err = svc.CloseDeal(ctx, stored.ID, broker.ID, DealInput{Type: "sale"})
	if err != nil {
		t.Fatalf("CloseDeal: %v", err)
	}
	if sum.Sale.CommissionRate != 3 || sum.Sale.CommissionAmount != 30 {
		t.Fatalf("stored rate not applied: %+v", sum.Sale)
	}
}

func TestCloseDeal_RecurringRental(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Rita", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeRent, Status: domain.StatusApproved, Price: 2500,
		IPTU: f64(120), BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	sum, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{
		Type: "aluguel", CommissionRate: "10", CommissionCycles: "2", RecurrenceInterval: "mensal",
	})
	if err != nil {
		t.Fatalf("CloseDeal: %v", err)
	}
	if sum.Property.Status != domain.StatusRented {
		t.Fatalf("status = %q; want rented", sum.Property.Status)
	}
	s := sum.Sale
	if !s.IsRecurring || s.RecurrenceInterval != domain.RecurrenceMonthly || s.CommissionCycles != 2 {
		t.Fatalf("recurrence not recorded: %+v", s)
	}
	if s.SalePrice != 2500 || s.CommissionAmount != 250 {
		t.Fatalf("amounts = %v/%v; want 2500/250", s.SalePrice, s.CommissionAmount)
	}
	if s.IPTUValue == nil || *s.IPTUValue != 120 {
		t.Fatalf("iptu not carried from property: %v", s.IPTUValue)
	}
}

func TestCloseDeal_PurposeGuard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Paulo", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	if _, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "rent"}); !errors.Is(err, ErrPurposeMismatch) {
		t.Fatalf("rent on sale-only listing: err = %v; want ErrPurposeMismatch", err)
	}
	if n, _ := repo.CountSales(ctx, db, p.ID); n != 0 {
		t.Fatalf("rejected close wrote %d sale rows", n)
	}
	if _, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "sale"}); err != nil {
		t.Fatalf("sale on sale-only listing: %v", err)
	}
}

func TestCloseDeal_Rejections(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Lia", domain.RoleBroker, true)
	other := seedUser(t, db, "Otto", domain.RoleBroker, true)
	client := seedUser(t, db, "Caio", domain.RoleClient, true)
	approved := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	pending := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusPendingApproval, Price: 1000, BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	tests := []struct {
		name   string
		id     uint
		caller uint
		in     DealInput
		check  func(error) bool
	}{
		{"unknown caller", approved.ID, 9999, DealInput{Type: "sale"}, func(e error) bool { return errors.Is(e, ErrUnauthenticated) }},
		{"client", approved.ID, client.ID, DealInput{Type: "sale"}, func(e error) bool { return errors.Is(e, ErrNotBroker) }},
		{"other broker", approved.ID, other.ID, DealInput{Type: "sale"}, func(e error) bool { return errors.Is(e, ErrNotBroker) }},
		{"pending", pending.ID, broker.ID, DealInput{Type: "sale"}, func(e error) bool { return errors.Is(e, ErrInvalidTransition) }},
		{"missing property", 4242, broker.ID, DealInput{Type: "sale"}, func(e error) bool { return errors.Is(e, ErrPropertyNotFound) }},
		{"bad deal type", approved.ID, broker.ID, DealInput{Type: "permuta"}, IsValidation},
		{"bad recurrence", approved.ID, broker.ID, DealInput{Type: "sale", RecurrenceInterval: "daily"}, IsValidation},
		{"bad cycles", approved.ID, broker.ID, DealInput{Type: "sale", CommissionCycles: "1.5"}, IsValidation},
		{"negative amount", approved.ID, broker.ID, DealInput{Type: "sale", Amount: "-10"}, IsValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CloseDeal(ctx, tc.id, tc.caller, tc.in)
			if err == nil || !tc.check(err) {
				t.Fatalf("err = %v", err)
			}
		})
	}

	// nothing was mutated
	got, _ := repo.GetProperty(ctx, db, approved.ID)
	if got.Status != domain.StatusApproved || got.SaleValue != nil {
		t.Fatalf("failed closes mutated the property: %+v", got)
	}
	if n, _ := repo.CountSales(ctx, db, approved.ID); n != 0 {
		t.Fatalf("failed closes wrote %d sale rows", n)
	}
}

func TestCancelThenClose_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Ana", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	if _, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "sale"}); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := svc.CancelDeal(ctx, p.ID, broker.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Fatalf("status = %q; want approved", got.Status)
	}
	if got.SaleValue != nil || got.CommissionValue != nil || got.CommissionRate != nil {
		t.Fatalf("deal fields not cleared: %+v", got)
	}
	if n, _ := repo.CountSales(ctx, db, p.ID); n != 0 {
		t.Fatalf("sales after cancel = %d; want 0", n)
	}

	if _, err := svc.CancelDeal(ctx, p.ID, broker.ID); !errors.Is(err, ErrNoDealToCancel) {
		t.Fatalf("second cancel err = %v; want ErrNoDealToCancel", err)
	}

	sum, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "sale", Amount: "800"})
	if err != nil {
		t.Fatalf("re-close: %v", err)
	}
	if sum.Property.Status != domain.StatusSold || sum.Sale.SalePrice != 800 {
		t.Fatalf("re-close did not behave as fresh: %+v", sum)
	}
	if n, _ := repo.CountSales(ctx, db, p.ID); n != 1 {
		t.Fatalf("sales after re-close = %d; want 1", n)
	}
}

func TestCloseDeal_PublishesOnlyOnTransition(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Davi", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Title: "Apto Centro", Purpose: domain.PurposeRent, Status: domain.StatusApproved, Price: 1500, BrokerID: &broker.ID,
	})
	rec := &recorder{}
	svc := NewPropertyService(db, rec)

	if _, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "rent"}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "rent", Amount: "1600"}); err != nil {
		t.Fatalf("re-close: %v", err)
	}
	if got := rec.types(); len(got) != 1 || got[0] != events.DealClosed {
		t.Fatalf("events = %v; want one DealClosed", got)
	}
	e, _ := rec.last(events.DealClosed)
	if e.DealType != domain.DealRent || e.Status != domain.StatusRented || e.Title != "Apto Centro" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestCloseDeal_PublishFailureKeepsDeal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Eva", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, &recorder{err: errors.New("broker down")})

	if _, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "sale"}); err != nil {
		t.Fatalf("close must succeed when publishing fails: %v", err)
	}
	got, _ := repo.GetProperty(ctx, db, p.ID)
	if got.Status != domain.StatusSold {
		t.Fatalf("status = %q; want sold", got.Status)
	}
}

func TestCloseDeal_AdminNotifiedThroughHandler(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := seedUser(t, db, "Adm", domain.RoleAdmin, true)
	broker := seedUser(t, db, "Gil", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Title: "Casa Azul", Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	notes := NewNotificationService(db, nil)
	h := &EventHandler{Notifications: notes, PriceDrops: NewPriceDropNotifier(db, notes)}
	svc := NewPropertyService(db, events.Inline{Handler: h})

	if _, err := svc.CloseDeal(ctx, p.ID, broker.ID, DealInput{Type: "sale"}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := countNotifications(t, db, "recipient_id IS NULL AND related_entity_id = ? AND message LIKE ?", p.ID, "%vendido%"); n != 1 {
		t.Fatalf("admin broadcast rows = %d; want 1", n)
	}
	items, total, err := notes.ListForUser(ctx, admin.ID, 1, 10)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("admin list = %d/%d, %v; want 1", len(items), total, err)
	}
}

func TestUpdate_EditsFieldsAndClearsPrice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Hugo", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSaleRent, Status: domain.StatusPendingApproval, Price: 1000,
		PriceRent: f64(900), BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	got, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{
		Title:     sptr("  Casa Nova "),
		Bedrooms:  func() *int { v := 3; return &v }(),
		PriceRent: NullableFloat{Set: true},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "Casa Nova" || got.Bedrooms != 3 || got.PriceRent != nil {
		t.Fatalf("unexpected property: %+v", got)
	}
	if got.Status != domain.StatusPendingApproval {
		t.Fatalf("status changed: %q", got.Status)
	}
}

func TestUpdate_Rejections(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Ivo", domain.RoleBroker, true)
	stranger := seedUser(t, db, "Jon", domain.RoleClient, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	if _, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{}); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("empty update err = %v; want ErrNoChanges", err)
	}
	if _, err := svc.Update(ctx, p.ID, stranger.ID, UpdateInput{Title: sptr("x")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger err = %v; want ErrForbidden", err)
	}
	if _, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{Status: sptr("arquivado")}); !IsValidation(err) {
		t.Fatalf("bad status err = %v; want validation", err)
	}
	if _, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{Price: f64(-1)}); !IsValidation(err) {
		t.Fatalf("negative price err = %v; want validation", err)
	}
	if _, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{Status: sptr("rejeitado")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("owner moderating err = %v; want ErrForbidden", err)
	}
	if _, err := svc.Update(ctx, 777, broker.ID, UpdateInput{Title: sptr("x")}); !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("missing property err = %v; want ErrPropertyNotFound", err)
	}
}

func TestUpdate_StatusDrivesDeals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Kim", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSaleRent, Status: domain.StatusApproved, Price: 500000,
		PriceRent: f64(3000), BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	got, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{
		Status: sptr("Alugado"),
		Deal:   DealInput{CommissionRate: "8"},
	})
	if err != nil {
		t.Fatalf("Update to rented: %v", err)
	}
	if got.Status != domain.StatusRented || got.SaleValue == nil || *got.SaleValue != 3000 {
		t.Fatalf("rent close via update wrong: %+v", got)
	}
	if got.CommissionValue == nil || *got.CommissionValue != 240 {
		t.Fatalf("commission_value = %v; want 240", got.CommissionValue)
	}

	// purpose change that no longer allows the current deal
	if _, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{Purpose: sptr("Venda")}); !errors.Is(err, ErrPurposeMismatch) {
		t.Fatalf("purpose change err = %v; want ErrPurposeMismatch", err)
	}

	got, err = svc.Update(ctx, p.ID, broker.ID, UpdateInput{Status: sptr("aprovado")})
	if err != nil {
		t.Fatalf("Update to approved: %v", err)
	}
	if got.Status != domain.StatusApproved || got.SaleValue != nil {
		t.Fatalf("cancel via update wrong: %+v", got)
	}
	if n, _ := repo.CountSales(ctx, db, p.ID); n != 0 {
		t.Fatalf("sales after cancel = %d", n)
	}
}

func TestUpdate_FailedDealRollsBackFieldEdits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Leo", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Title: "Original", Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	_, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{Title: sptr("Changed"), Status: sptr("alugado")})
	if !errors.Is(err, ErrPurposeMismatch) {
		t.Fatalf("err = %v; want ErrPurposeMismatch", err)
	}
	got, _ := repo.GetProperty(ctx, db, p.ID)
	if got.Title != "Original" || got.Status != domain.StatusApproved {
		t.Fatalf("transaction not rolled back: %+v", got)
	}
}

func TestUpdate_ClientOwnerCannotCloseDeal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	client := seedUser(t, db, "Mia", domain.RoleClient, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, OwnerID: &client.ID,
	})
	svc := NewPropertyService(db, nil)

	if _, err := svc.Update(ctx, p.ID, client.ID, UpdateInput{Status: sptr("vendido")}); !errors.Is(err, ErrNotBroker) {
		t.Fatalf("err = %v; want ErrNotBroker", err)
	}
}

func TestUpdate_RejectedListingCanBeResubmitted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	client := seedUser(t, db, "Nina", domain.RoleClient, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeRent, Status: domain.StatusRejected, Price: 1000, OwnerID: &client.ID,
	})
	svc := NewPropertyService(db, nil)

	got, err := svc.Update(ctx, p.ID, client.ID, UpdateInput{Status: sptr("pendente")})
	if err != nil || got.Status != domain.StatusPendingApproval {
		t.Fatalf("resubmit = %v, %v; want pending_approval", got, err)
	}
}

func TestUpdate_PriceChangePublished(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Otavio", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSaleRent, Status: domain.StatusApproved, Price: 1000,
		PriceSale: f64(1000), PriceRent: f64(50), BrokerID: &broker.ID,
	})
	rec := &recorder{}
	svc := NewPropertyService(db, rec)

	if _, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{PriceSale: NullableFloat{Set: true, Value: f64(900)}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	e, ok := rec.last(events.PriceChanged)
	if !ok {
		t.Fatalf("no PriceChanged event; got %v", rec.types())
	}
	if e.OldSale == nil || *e.OldSale != 1000 || e.NewSale == nil || *e.NewSale != 900 {
		t.Fatalf("sale prices in event = %v -> %v", e.OldSale, e.NewSale)
	}
	if e.OldRent != nil || e.NewRent != nil {
		t.Fatalf("untouched rent side carried: %v -> %v", e.OldRent, e.NewRent)
	}

	// a non-price edit publishes nothing new
	before := len(rec.types())
	if _, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{City: sptr("Recife")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(rec.types()) != before {
		t.Fatalf("unexpected events after non-price edit: %v", rec.types())
	}
}

func TestUpdate_PriceDropReachesFavorites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	broker := seedUser(t, db, "Pedro", domain.RoleBroker, true)
	fan := seedUser(t, db, "Quel", domain.RoleClient, true)
	p := seedListing(t, db, domain.Property{
		Title: "Casa Verde", Purpose: domain.PurposeSale, Status: domain.StatusApproved, Price: 1000, BrokerID: &broker.ID,
	})
	seedFavorite(t, db, fan.ID, p.ID)

	notes := NewNotificationService(db, nil)
	h := &EventHandler{Notifications: notes, PriceDrops: NewPriceDropNotifier(db, notes)}
	svc := NewPropertyService(db, events.Inline{Handler: h})

	if _, err := svc.Update(ctx, p.ID, broker.ID, UpdateInput{Price: f64(850)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n := countNotifications(t, db, "recipient_id = ? AND message LIKE ?", fan.ID, "Preço reduzido%"); n != 1 {
		t.Fatalf("price drop rows = %d; want 1", n)
	}
}

func TestCreate_RolesAndValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := seedUser(t, db, "Root", domain.RoleAdmin, true)
	broker := seedUser(t, db, "Sol", domain.RoleBroker, true)
	waiting := seedUser(t, db, "Tati", domain.RoleBroker, false)
	client := seedUser(t, db, "Ugo", domain.RoleClient, true)
	rec := &recorder{}
	svc := NewPropertyService(db, rec)

	in := CreateInput{Title: "Sobrado", Purpose: "venda e aluguel", Price: 1000}

	p, err := svc.Create(ctx, broker.ID, in)
	if err != nil {
		t.Fatalf("broker create: %v", err)
	}
	if p.Status != domain.StatusPendingApproval || p.BrokerID == nil || *p.BrokerID != broker.ID || p.OwnerID != nil {
		t.Fatalf("broker listing wrong: %+v", p)
	}
	if p.Purpose != domain.PurposeSaleRent {
		t.Fatalf("purpose = %q", p.Purpose)
	}
	if _, ok := rec.last(events.PropertySubmitted); !ok {
		t.Fatalf("PropertySubmitted not published")
	}

	c, err := svc.Create(ctx, client.ID, in)
	if err != nil {
		t.Fatalf("client create: %v", err)
	}
	if c.OwnerID == nil || *c.OwnerID != client.ID || c.BrokerID != nil {
		t.Fatalf("client listing wrong: %+v", c)
	}

	if _, err := svc.Create(ctx, waiting.ID, in); !errors.Is(err, ErrBrokerNotApproved) {
		t.Fatalf("unapproved broker err = %v", err)
	}
	if _, err := svc.Create(ctx, admin.ID, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin create err = %v", err)
	}
	if _, err := svc.Create(ctx, broker.ID, CreateInput{Purpose: "venda"}); !IsValidation(err) {
		t.Fatalf("missing title err = %v", err)
	}
	if _, err := svc.Create(ctx, broker.ID, CreateInput{Title: "x", Purpose: "permuta"}); !IsValidation(err) {
		t.Fatalf("bad purpose err = %v", err)
	}
	if _, err := svc.Create(ctx, 0, in); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous err = %v", err)
	}
}

func TestReview_ModerationAndOwnerNotice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := seedUser(t, db, "Vera", domain.RoleAdmin, true)
	client := seedUser(t, db, "Wil", domain.RoleClient, true)
	broker := seedUser(t, db, "Xavi", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Title: "Kitnet", Purpose: domain.PurposeRent, Status: domain.StatusPendingApproval, Price: 800, OwnerID: &client.ID,
	})
	notes := NewNotificationService(db, nil)
	svc := NewPropertyService(db, events.Inline{Handler: &EventHandler{Notifications: notes}})

	if _, err := svc.Review(ctx, p.ID, broker.ID, "aprovado"); !errors.Is(err, ErrAdminOnly) {
		t.Fatalf("broker review err = %v; want ErrAdminOnly", err)
	}
	if _, err := svc.Review(ctx, p.ID, admin.ID, "vendido"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("review to sold err = %v; want ErrInvalidTransition", err)
	}

	got, err := svc.Review(ctx, p.ID, admin.ID, "Aprovado")
	if err != nil || got.Status != domain.StatusApproved {
		t.Fatalf("approve = %v, %v", got, err)
	}
	if n := countNotifications(t, db, "recipient_id = ? AND message LIKE ?", client.ID, "%aprovado%"); n != 1 {
		t.Fatalf("owner notices = %d; want 1", n)
	}

	// re-approving is a no-op and sends nothing
	if _, err := svc.Review(ctx, p.ID, admin.ID, "approved"); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if n := countNotifications(t, db, "recipient_id = ?", client.ID); n != 1 {
		t.Fatalf("owner notices after no-op = %d; want 1", n)
	}
}

func TestReview_ClosedListingNeedsCancelFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := seedUser(t, db, "Yara", domain.RoleAdmin, true)
	broker := seedUser(t, db, "Zeca", domain.RoleBroker, true)
	p := seedListing(t, db, domain.Property{
		Purpose: domain.PurposeSale, Status: domain.StatusSold, Price: 1000, BrokerID: &broker.ID,
	})
	svc := NewPropertyService(db, nil)

	if _, err := svc.Review(ctx, p.ID, admin.ID, "rejected"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v; want ErrInvalidTransition", err)
	}
}

func TestNullableFloat_UnmarshalJSON(t *testing.T) {
	var body struct {
		A NullableFloat `json:"a"`
		B NullableFloat `json:"b"`
		C NullableFloat `json:"c"`
		D NullableFloat `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": null, "c": "900"}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.A.Set || body.A.Value == nil || *body.A.Value != 12.5 {
		t.Fatalf("a = %+v", body.A)
	}
	if !body.B.Set || body.B.Value != nil {
		t.Fatalf("b = %+v; want set and cleared", body.B)
	}
	if !body.C.Set || body.C.Value == nil || *body.C.Value != 900 {
		t.Fatalf("c = %+v", body.C)
	}
	if body.D.Set {
		t.Fatalf("absent field marked as set")
	}
	if err := json.Unmarshal([]byte(`{"a": "caro"}`), &body); err == nil {
		t.Fatalf("expected error for non-numeric value")
	}
}
