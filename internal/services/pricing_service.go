package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/models"
)

// PricingService resolves ticket prices for tour slots. Resolution walks
// two tiers: a per-instance exception wins over the tour's base rule.
type PricingService struct {
	db           database.DB
	tourRepo     *database.TourRepository
	instanceRepo *database.InstanceRepository
	ticketRepo   *database.TicketRepository
	pricingRepo  *database.PricingRepository
	logger       *logrus.Logger
}

// NewPricingService creates a new PricingService
func NewPricingService(
	db database.DB,
	tourRepo *database.TourRepository,
	instanceRepo *database.InstanceRepository,
	ticketRepo *database.TicketRepository,
	pricingRepo *database.PricingRepository,
	logger *logrus.Logger,
) *PricingService {
	return &PricingService{
		db:           db,
		tourRepo:     tourRepo,
		instanceRepo: instanceRepo,
		ticketRepo:   ticketRepo,
		pricingRepo:  pricingRepo,
		logger:       logger,
	}
}

// SetRule sets the base price of a ticket on a tour
func (s *PricingService) SetRule(tourID string, req *models.SetPricingRuleRequest) (*models.PricingRule, error) {
	if err := req.Validate(); err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}
	if _, err := s.tourRepo.GetByID(tourID); err != nil {
		return nil, err
	}
	if _, err := s.ticketRepo.GetByID(req.TicketID); err != nil {
		return nil, err
	}

	rule := &models.PricingRule{
		TourID:   tourID,
		TicketID: req.TicketID,
		Price:    req.Price,
	}
	if err := s.pricingRepo.UpsertRule(rule); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tour_id":   tourID,
		"ticket_id": req.TicketID,
		"price":     req.Price,
	}).Info("Pricing rule set")

	return rule, nil
}

// GetRules returns the base price rules of a tour
func (s *PricingService) GetRules(tourID string) ([]models.PricingRule, error) {
	if _, err := s.tourRepo.GetByID(tourID); err != nil {
		return nil, err
	}
	return s.pricingRepo.GetRulesByTour(tourID)
}

// ResolveSlotPrices returns the effective per-ticket prices for one slot.
// Unmaterialized slots have no exceptions, so every price is the base rule.
// A tour with no rules prices nothing and resolves to an empty list.
func (s *PricingService) ResolveSlotPrices(tourID string, date time.Time, startTime string) ([]models.ResolvedTicketPrice, error) {
	rules, err := s.pricingRepo.GetRulesByTour(tourID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		s.logger.WithField("tour_id", tourID).Warn("Tour has no pricing rules, nothing is sellable")
		return []models.ResolvedTicketPrice{}, nil
	}

	overrides := map[string]float64{}
	instance, err := s.instanceRepo.GetByKey(tourID, date, startTime)
	if err != nil {
		return nil, err
	}
	if instance != nil {
		exceptions, err := s.pricingRepo.GetExceptionsByInstance(instance.ID)
		if err != nil {
			return nil, err
		}
		for _, e := range exceptions {
			overrides[e.TicketID] = e.Price
		}
	}

	ticketIDs := make([]string, 0, len(rules))
	for _, rule := range rules {
		ticketIDs = append(ticketIDs, rule.TicketID)
	}
	tickets, err := s.ticketRepo.GetByIDs(ticketIDs)
	if err != nil {
		return nil, err
	}

	resolved := make([]models.ResolvedTicketPrice, 0, len(rules))
	for _, rule := range rules {
		ticket, ok := tickets[rule.TicketID]
		if !ok || !ticket.IsActive {
			continue
		}
		price := rule.Price
		_, isOverride := overrides[rule.TicketID]
		if isOverride {
			price = overrides[rule.TicketID]
		}
		resolved = append(resolved, models.ResolvedTicketPrice{
			TicketID:   ticket.ID,
			Name:       ticket.Name,
			Type:       ticket.Type,
			Price:      price,
			IsOverride: isOverride,
			Recipe:     ticket.Recipe,
		})
	}
	return resolved, nil
}

// ApplyExceptionBatch writes one override price onto every scheduled slot
// of the tour inside the date range, materializing instances as needed,
// in a single transaction. Returns the number of slots written.
func (s *PricingService) ApplyExceptionBatch(tourID string, req *models.ApplyPriceExceptionBatchRequest) (int, error) {
	start, end, err := req.Validate()
	if err != nil {
		return 0, models.NewValidationError("%s", err.Error())
	}

	tour, err := s.tourRepo.GetByID(tourID)
	if err != nil {
		return 0, err
	}
	if _, err := s.ticketRepo.GetByID(req.TicketID); err != nil {
		return 0, err
	}
	schedule, err := s.tourRepo.GetActiveSchedule(tourID)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	count := 0
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if !schedule.IsScheduledOn(date) {
			continue
		}
		for _, startTime := range schedule.Times {
			instance, err := s.instanceRepo.FindOrCreate(tx, tour, date, startTime)
			if err != nil {
				return 0, err
			}
			exception := &models.PricingException{
				InstanceID: instance.ID,
				TicketID:   req.TicketID,
				Price:      req.Price,
			}
			if err := s.pricingRepo.UpsertException(tx, exception); err != nil {
				return 0, err
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"tour_id":   tourID,
		"ticket_id": req.TicketID,
		"start":     req.StartDate,
		"end":       req.EndDate,
		"slots":     count,
	}).Info("Price exception batch applied")

	return count, nil
}

// SetSlotPrice overrides one ticket price on a single slot, materializing
// the instance if needed. It lands in the same row a batch write uses, so
// whichever write happens last wins.
func (s *PricingService) SetSlotPrice(tourID string, req *models.SetInstancePriceRequest) (*models.PricingException, error) {
	date, err := req.Validate()
	if err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}

	tour, err := s.tourRepo.GetByID(tourID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ticketRepo.GetByID(req.TicketID); err != nil {
		return nil, err
	}
	schedule, err := s.tourRepo.GetActiveSchedule(tourID)
	if err != nil {
		return nil, err
	}
	if !schedule.IsScheduledOn(date) || !schedule.HasTime(req.Time) {
		return nil, models.NewValidationError("%s %s is not a scheduled slot of this tour", req.Date, req.Time)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	instance, err := s.instanceRepo.FindOrCreate(tx, tour, date, req.Time)
	if err != nil {
		return nil, err
	}
	exception := &models.PricingException{
		InstanceID: instance.ID,
		TicketID:   req.TicketID,
		Price:      req.Price,
	}
	if err := s.pricingRepo.UpsertException(tx, exception); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tour_id":     tourID,
		"instance_id": instance.ID,
		"ticket_id":   req.TicketID,
		"price":       req.Price,
	}).Info("Slot price override set")

	return exception, nil
}

// DeleteSlotPrice removes one slot override so the slot falls back to the
// tour's base rule. This is the recovery path after a batch write clobbered
// a hand-set price.
func (s *PricingService) DeleteSlotPrice(tourID, ticketID, dateStr, timeStr string) error {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return models.NewValidationError("date must be in YYYY-MM-DD format")
	}

	instance, err := s.instanceRepo.GetByKey(tourID, date, timeStr)
	if err != nil {
		return err
	}
	if instance == nil {
		return &models.NotFoundError{Resource: "pricing exception", ID: models.SlotKey(date, timeStr)}
	}
	return s.pricingRepo.DeleteException(instance.ID, ticketID)
}

// PriceSelection prices a ticket selection against one slot and returns
// the seat count it occupies and the total amount. Every selected ticket
// must resolve to a price.
func (s *PricingService) PriceSelection(tourID string, date time.Time, startTime string, selection []models.TicketSelection) (int, float64, error) {
	resolved, err := s.ResolveSlotPrices(tourID, date, startTime)
	if err != nil {
		return 0, 0, err
	}
	byID := make(map[string]models.ResolvedTicketPrice, len(resolved))
	for _, p := range resolved {
		byID[p.TicketID] = p
	}

	seats := 0
	total := 0.0
	for _, sel := range selection {
		price, ok := byID[sel.TicketID]
		if !ok {
			return 0, 0, models.NewValidationError("ticket %s is not priced for this tour", sel.TicketID)
		}
		ticket := models.Ticket{Type: price.Type, Recipe: price.Recipe}
		seats += sel.Quantity * ticket.SeatsPerUnit()
		total += float64(sel.Quantity) * price.Price
	}
	return seats, total, nil
}
