package websocket

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/models"
)

func testActivity(tenantID, msg string) *models.AggregatedActivity {
	return &models.AggregatedActivity{
		ID:       msg,
		TenantID: tenantID,
		Kind:     models.KindClassCheckin,
		Message:  msg,
	}
}

func TestPublishReachesOnlyTenantSubscribers(t *testing.T) {
	hub := NewHub(8, logging.Get())
	defer hub.Stop()

	sevenA := hub.Subscribe("7")
	sevenB := hub.Subscribe("7")
	eight := hub.Subscribe("8")

	hub.Publish("7", testActivity("7", "hello"))

	for _, sub := range []*Subscriber{sevenA, sevenB} {
		select {
		case got := <-sub.C:
			assert.Equal(t, "hello", got.Message)
		default:
			t.Fatalf("subscriber %s got no frame", sub.ID)
		}
	}

	select {
	case got := <-eight.C:
		t.Fatalf("tenant 8 must not see tenant 7 traffic, got %q", got.Message)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(8, logging.Get())
	defer hub.Stop()

	sub := hub.Subscribe("7")
	require.Equal(t, 1, hub.SubscriberCount("7"))

	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.SubscriberCount("7"))

	_, open := <-sub.C
	assert.False(t, open)

	// Idempotent.
	hub.Unsubscribe(sub)
}

func TestPublishAfterUnsubscribeIsNoop(t *testing.T) {
	hub := NewHub(8, logging.Get())
	defer hub.Stop()

	sub := hub.Subscribe("7")
	hub.Unsubscribe(sub)

	// Must not panic on the closed channel.
	hub.Publish("7", testActivity("7", "late"))
}

func TestSlowSubscriberDropsOldestFrame(t *testing.T) {
	hub := NewHub(2, logging.Get())
	defer hub.Stop()

	drops := 0
	hub.OnDrop(func(tenantID string) {
		assert.Equal(t, "7", tenantID)
		drops++
	})

	sub := hub.Subscribe("7")
	for i := 0; i < 4; i++ {
		hub.Publish("7", testActivity("7", fmt.Sprintf("frame-%d", i)))
	}

	assert.Equal(t, 2, drops)

	// The buffer holds the two newest frames; the oldest were evicted.
	first := <-sub.C
	second := <-sub.C
	assert.Equal(t, "frame-2", first.Message)
	assert.Equal(t, "frame-3", second.Message)
}

func TestOnCountChangeTracksSubscriptions(t *testing.T) {
	hub := NewHub(8, logging.Get())
	defer hub.Stop()

	var totals []int
	hub.OnCountChange(func(total int) { totals = append(totals, total) })

	a := hub.Subscribe("7")
	hub.Subscribe("8")
	hub.Unsubscribe(a)

	assert.Equal(t, []int{1, 2, 1}, totals)
}

func TestStopClosesEverySubscription(t *testing.T) {
	hub := NewHub(8, logging.Get())

	a := hub.Subscribe("7")
	b := hub.Subscribe("8")
	require.Equal(t, 2, hub.TotalSubscribers())

	hub.Stop()
	assert.Equal(t, 0, hub.TotalSubscribers())

	_, open := <-a.C
	assert.False(t, open)
	_, open = <-b.C
	assert.False(t, open)

	// Subscriptions after Stop come back pre-closed.
	late := hub.Subscribe("7")
	_, open = <-late.C
	assert.False(t, open)

	// And publishing is a no-op.
	hub.Publish("7", testActivity("7", "after-stop"))
}
