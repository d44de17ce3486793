// File: internal/notify/monitor_test.go
package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/purib/ipopilot/internal/domain"
	"github.com/purib/ipopilot/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testAccount() *domain.Account {
	return &domain.Account{
		Name:     "User One",
		Username: "user1",
		DPID:     "13700",
	}
}

func testOffering() domain.Offering {
	return domain.Offering{
		Company: "Alpha Hydro",
		URL:     "https://portal.example/#/asba/apply/101",
	}
}

// attachedMonitor wires a monitor to a fake page and returns both plus the
// fakes, with cleanup registered.
func attachedMonitor(t *testing.T) (*Monitor, *mocks.FakePage, *mocks.FakeLedger, *mocks.FakeAccountStore) {
	t.Helper()
	ledger := &mocks.FakeLedger{}
	store := mocks.NewFakeAccountStore()
	monitor := NewMonitor(ledger, store, zap.NewNop())
	monitor.Start(context.Background())
	t.Cleanup(monitor.Stop)

	page := &mocks.FakePage{}
	require.NoError(t, monitor.Attach(context.Background(), page, testAccount(), testOffering()))
	return monitor, page, ledger, store
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindSuccess, Classify("Application submitted Successfully."))
	assert.Equal(t, KindWrongPIN, Classify("Wrong Transaction PIN entered"))
	assert.Equal(t, KindOther, Classify("Please wait"))
	assert.Equal(t, KindOther, Classify(""))
}

func TestSuccessToastRecordsOnce(t *testing.T) {
	monitor, page, ledger, store := attachedMonitor(t)
	monitor.SetSelectedBank("NIC Asia Bank Ltd")

	page.Trigger(relayBinding, "Application submitted Successfully.")
	page.Trigger(relayBinding, "Application submitted Successfully.")
	monitor.Stop()

	records := ledger.Snapshot()
	require.Len(t, records, 1, "duplicate success toasts must not produce a second record")
	assert.Equal(t, "user1", records[0].Username)
	assert.Equal(t, "Alpha Hydro", records[0].Company)
	assert.Equal(t, "NIC Asia Bank Ltd", records[0].Bank)
	assert.Equal(t, "OK", store.Statuses["user1"])
}

func TestWrongPINToast(t *testing.T) {
	monitor, page, ledger, store := attachedMonitor(t)

	page.Trigger(relayBinding, "Wrong Transaction PIN entered")
	monitor.Stop()

	assert.Empty(t, ledger.Snapshot(), "wrong PIN writes no history record")
	assert.Equal(t, "Failed pin", store.Statuses["user1"])
}

func TestNeutralToastHasNoSideEffects(t *testing.T) {
	monitor, page, ledger, store := attachedMonitor(t)

	page.Trigger(relayBinding, "Please wait")
	page.Trigger(relayBinding, "   ")
	monitor.Stop()

	assert.Empty(t, ledger.Snapshot())
	assert.Empty(t, store.Statuses)
}

func TestAttachSwapsTarget(t *testing.T) {
	monitor, page, ledger, _ := attachedMonitor(t)
	monitor.SetSelectedBank("NIC Asia Bank Ltd")

	second := &domain.Account{Name: "User Two", Username: "user2"}
	offering := domain.Offering{Company: "Beta Cement", URL: "https://portal.example/#/asba/apply/102"}
	require.NoError(t, monitor.Attach(context.Background(), page, second, offering))

	page.Trigger(relayBinding, "Shares allocated successfully")
	monitor.Stop()

	records := ledger.Snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "user2", records[0].Username)
	assert.Equal(t, "Beta Cement", records[0].Company)
	assert.Empty(t, records[0].Bank, "re-attachment must reset the previous pair's bank")
}

func TestAttachInstallsObserverAndBinding(t *testing.T) {
	monitor, page, _, _ := attachedMonitor(t)
	defer monitor.Stop()

	assert.Contains(t, page.Exposed, relayBinding)
	// The observer script runs on every attach.
	evaluated := false
	for _, c := range page.Calls() {
		if c.Method == "Evaluate" && c.Value == observerScript {
			evaluated = true
		}
	}
	assert.True(t, evaluated)
}

// The consumer must only ever see the bank snapshot taken when a toast
// fired, even while the workflow goroutine keeps publishing new selections.
func TestConcurrentSelectionPublishing(t *testing.T) {
	monitor, page, ledger, _ := attachedMonitor(t)
	banks := []string{"Nepal Bank", "Global IME Bank", "NIC Asia Bank Ltd"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			monitor.SetSelectedBank(banks[i%len(banks)])
		}
	}()
	for i := 0; i < 200; i++ {
		page.Trigger(relayBinding, "Application submitted Successfully.")
	}
	wg.Wait()
	monitor.Stop()

	records := ledger.Snapshot()
	require.Len(t, records, 1)
	assert.Contains(t, append([]string{""}, banks...), records[0].Bank)
}

func TestToastAfterStopIsDropped(t *testing.T) {
	monitor, page, ledger, _ := attachedMonitor(t)
	monitor.Stop()

	// A toast relayed by the browser goroutine after shutdown must not
	// crash the process.
	assert.NotPanics(t, func() {
		page.Trigger(relayBinding, "Application submitted Successfully.")
	})
	assert.Empty(t, ledger.Snapshot())
}

func TestStopDrainsQueuedToasts(t *testing.T) {
	ledger := &mocks.FakeLedger{}
	store := mocks.NewFakeAccountStore()
	monitor := NewMonitor(ledger, store, zap.NewNop())
	page := &mocks.FakePage{}
	require.NoError(t, monitor.Attach(context.Background(), page, testAccount(), testOffering()))

	// Queue before the consumer exists, then start and stop immediately:
	// the buffered toast must still be applied.
	page.Trigger(relayBinding, "Application submitted Successfully.")
	monitor.Start(context.Background())
	monitor.Stop()

	require.Len(t, ledger.Snapshot(), 1)
}

func TestToastBeforeAttachIsDropped(t *testing.T) {
	ledger := &mocks.FakeLedger{}
	store := mocks.NewFakeAccountStore()
	monitor := NewMonitor(ledger, store, zap.NewNop())
	monitor.Start(context.Background())
	defer monitor.Stop()

	monitor.enqueue("Application submitted Successfully.")
	monitor.Stop()

	assert.Empty(t, ledger.Snapshot())
}
