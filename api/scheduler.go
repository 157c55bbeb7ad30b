/*
scheduler.go - Periodic budget alert sweep

PURPOSE:
  Periodically consolidates the per-agency budget of every enterprise for
  the current fiscal year and reports the overspend and vigilance alerts,
  so budget drift is surfaced without anyone opening the dashboard.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - One tariff loader per sweep: each product's default tariff is read
    once per sweep, whatever the number of enterprises using it
  - Keeps the latest sweep in memory for GET /api/alerts

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewAlertSweeper(store, handler, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: ListAlerts and TriggerSweep endpoints
  - budget/alerts.go: alert rules
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/config"
)

// EnterpriseAlerts is the alert list of one enterprise in a sweep.
type EnterpriseAlerts struct {
	EnterpriseID budget.EnterpriseID
	Name         string
	Alerts       []budget.Alert
}

// Sweep is the outcome of one pass over all enterprises. Enterprises
// without alerts are left out.
type Sweep struct {
	RanAt       time.Time
	FiscalYear  int
	Enterprises []EnterpriseAlerts
	Failures    int
}

// AlertSweeper runs the alert sweep on a ticker.
type AlertSweeper struct {
	Store         Store
	Handler       *Handler
	Logger        logrus.FieldLogger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *Sweep
}

// NewAlertSweeper creates a new sweeper.
func NewAlertSweeper(store Store, handler *Handler, logger logrus.FieldLogger) *AlertSweeper {
	return &AlertSweeper{
		Store:         store,
		Handler:       handler,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the sweeper.
func (s *AlertSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("alert sweeper disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan bool)
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.WithField("interval", s.CheckInterval.String()).Info("alert sweeper started")
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *AlertSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("alert sweeper stopped")
	}
}

func (s *AlertSweeper) run(ticker *time.Ticker, stop chan bool) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow sweeps all enterprises and records the result.
func (s *AlertSweeper) RunNow(ctx context.Context) Sweep {
	sweep := Sweep{
		RanAt:      s.Handler.now().UTC(),
		FiscalYear: s.Handler.currentFiscalYear(),
	}

	enterprises, err := s.Store.ListEnterprises(ctx)
	if err != nil {
		config.LogError(s.Logger, "api", "AlertSweeper.RunNow", "list enterprises", nil, err)
		sweep.Failures++
		s.record(sweep)
		return sweep
	}

	c := &budget.Consolidator{
		Source:           s.Store,
		Tariffs:          newTariffLoader(s.Store),
		DefaultThreshold: s.Handler.DefaultThreshold,
	}

	for _, e := range enterprises {
		view, err := c.ByAgency(ctx, e.ID, sweep.FiscalYear, nil)
		if err != nil {
			config.LogError(s.Logger, "api", "AlertSweeper.RunNow", "consolidate", e.ID, err)
			sweep.Failures++
			continue
		}
		if len(view.Alerts) == 0 {
			continue
		}

		for _, a := range view.Alerts {
			s.Logger.WithFields(logrus.Fields{
				"enterprise": e.ID,
				"scope":      a.Scope,
				"level":      a.Level,
				"name":       a.Name,
				"percentage": a.Percentage.StringFixed(2),
			}).Warn("budget alert")
		}
		sweep.Enterprises = append(sweep.Enterprises, EnterpriseAlerts{
			EnterpriseID: e.ID,
			Name:         e.Name,
			Alerts:       view.Alerts,
		})
	}

	s.Logger.WithFields(logrus.Fields{
		"fiscal_year": sweep.FiscalYear,
		"enterprises": len(enterprises),
		"alerting":    len(sweep.Enterprises),
		"failures":    sweep.Failures,
	}).Info("alert sweep complete")

	s.record(sweep)
	return sweep
}

func (s *AlertSweeper) record(sweep Sweep) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.last = &sweep
}

// Last returns the latest sweep, or nil before the first one.
func (s *AlertSweeper) Last() *Sweep {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}
