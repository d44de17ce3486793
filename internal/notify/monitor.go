// File: internal/notify/monitor.go
// Package notify bridges the portal's toast notifications into process
// level side effects: history records and account status updates.
package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

// relayBinding is the window function the in-page observer reports through.
const relayBinding = "__ipoToastRelay"

// observerScript installs a MutationObserver that forwards the text of any
// newly added toast-style element. A previous observer is disconnected
// first so re-attachment never double-delivers a mutation.
const observerScript = `(() => {
	if (window.__ipoToastObserver) { window.__ipoToastObserver.disconnect(); }
	const sel = '.toast-message, .toastr, [role="alert"]';
	const report = (t) => { try { window.` + relayBinding + `(t); } catch (e) {} };
	window.__ipoToastObserver = new MutationObserver((mutations) => {
		for (const m of mutations) {
			for (const node of m.addedNodes) {
				if (node.nodeType !== 1) { continue; }
				if (node.matches(sel)) { report(node.innerText); }
				node.querySelectorAll(sel).forEach(el => report(el.innerText));
			}
		}
	});
	window.__ipoToastObserver.observe(document.body, { childList: true, subtree: true });
	return true;
})()`

// Kind classifies a notification text.
type Kind int

const (
	KindOther Kind = iota
	KindSuccess
	KindWrongPIN
)

// Classify maps a toast text to its notification kind by case-insensitive
// substring match.
func Classify(text string) Kind {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "successfully"):
		return KindSuccess
	case strings.Contains(lower, "wrong transaction pin"):
		return KindWrongPIN
	}
	return KindOther
}

// event is one toast delivery. Every field is a value copied under the
// monitor's mutex when the toast fired; the consumer goroutine never
// touches shared state, so no other synchronization is needed.
type event struct {
	name     string
	username string
	dpid     string
	company  string
	url      string
	bank     string
	text     string
}

// Monitor consumes toast events through a bounded channel. A single
// consumer goroutine applies classification and side effects, so delivery
// is at-least-once and every consumer action is idempotent, deferring to
// the ledger's uniqueness invariant.
type Monitor struct {
	ledger domain.Ledger
	store  domain.AccountStore
	logger *zap.Logger

	events chan event

	mu       sync.Mutex
	name     string
	username string
	dpid     string
	company  string
	url      string
	bank     string

	startOnce sync.Once
	stopOnce  sync.Once
	stopping  chan struct{}
	done      chan struct{}
}

func NewMonitor(ledger domain.Ledger, store domain.AccountStore, logger *zap.Logger) *Monitor {
	return &Monitor{
		ledger:   ledger,
		store:    store,
		logger:   logger.Named("notify"),
		events:   make(chan event, 64),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the consumer goroutine. It runs until ctx is canceled or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.consume(ctx)
	})
}

// Stop terminates the consumer after draining already-queued events. The
// events channel is never closed: a toast relayed by a browser goroutine
// that races Stop is simply left in the buffer.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopping)
		<-m.done
	})
}

// Attach points the monitor at the (account, offering) pair about to be
// processed and (re)installs the page observer. The relay binding is
// registered once per page; re-attachment only swaps the observer and the
// current target. The bank selection resets with each new pair.
func (m *Monitor) Attach(ctx context.Context, page domain.Page, acc *domain.Account, offering domain.Offering) error {
	m.mu.Lock()
	m.name = acc.Name
	m.username = acc.Username
	m.dpid = acc.DPID
	m.company = offering.Company
	m.url = offering.URL
	m.bank = ""
	m.mu.Unlock()

	if err := page.ExposeFunc(ctx, relayBinding, m.enqueue); err != nil {
		return err
	}
	return page.Evaluate(ctx, observerScript, nil)
}

// SetSelectedBank publishes the bank chosen for the pair currently being
// processed, so a later success toast records it. Safe to call from the
// workflow goroutine while toasts are arriving.
func (m *Monitor) SetSelectedBank(bank string) {
	m.mu.Lock()
	m.bank = bank
	m.mu.Unlock()
}

// enqueue snapshots the current target and queues the toast text. Called on
// the browser event goroutine; it must not block, so a full channel drops
// the event (the consumer is idempotent and the portal repeats important
// toasts).
func (m *Monitor) enqueue(text string) {
	m.mu.Lock()
	ev := event{
		name:     m.name,
		username: m.username,
		dpid:     m.dpid,
		company:  m.company,
		url:      m.url,
		bank:     m.bank,
		text:     text,
	}
	m.mu.Unlock()

	if ev.username == "" {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("Notification channel full, dropping toast", zap.String("text", text))
	}
}

func (m *Monitor) consume(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopping:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case ev := <-m.events:
					m.handle(ev)
				default:
					return
				}
			}
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

// handle applies the classification rules. The success and wrong-PIN rules
// are checked independently; phrasing can trip both across a run.
func (m *Monitor) handle(ev event) {
	text := strings.TrimSpace(ev.text)
	if text == "" {
		return
	}
	log := m.logger.With(
		zap.String("username", ev.username),
		zap.String("company", ev.company))
	log.Info("Toast received", zap.String("text", text))

	lower := strings.ToLower(text)

	if strings.Contains(lower, "successfully") {
		m.recordSuccess(ev, log)
		if err := m.store.SetStatus(ev.username, "pin", true); err != nil {
			log.Warn("Failed to persist PIN status", zap.Error(err))
		}
	}

	if strings.Contains(lower, "wrong transaction pin") {
		log.Warn("Wrong transaction PIN detected")
		if err := m.store.SetStatus(ev.username, "pin", false); err != nil {
			log.Warn("Failed to persist PIN status", zap.Error(err))
		}
	}
}

// recordSuccess writes the completion record unless the pair is already in
// the ledger; duplicate success toasts are expected and harmless.
func (m *Monitor) recordSuccess(ev event, log *zap.Logger) {
	done, err := m.ledger.IsCompleted(ev.username, ev.company)
	if err != nil {
		log.Warn("Ledger check failed", zap.Error(err))
		return
	}
	if done {
		return
	}
	rec := domain.Record{
		Name:     ev.name,
		Username: ev.username,
		BOID:     ev.dpid,
		Company:  ev.company,
		URL:      ev.url,
		Bank:     ev.bank,
	}
	if err := m.ledger.Record(rec); err != nil {
		log.Warn("Failed to record completion", zap.Error(err))
		return
	}
	log.Info("Completion recorded", zap.String("bank", rec.Bank))
}
