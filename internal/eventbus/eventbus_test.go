package eventbus

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type started struct{ Name string }
type finished struct{ Name string }

// Pattern: Calls comparison
func TestBus_DispatchByType(t *testing.T) {
	b := New()
	var got []string
	SubscribeTo(b, func(_ context.Context, e started) { got = append(got, "a:"+e.Name) })
	SubscribeTo(b, func(_ context.Context, e started) { got = append(got, "b:"+e.Name) })
	SubscribeTo(b, func(_ context.Context, e finished) { got = append(got, "finished:"+e.Name) })

	PublishTo(context.Background(), b, started{Name: "x"})
	PublishTo(context.Background(), b, finished{Name: "y"})

	if diff := cmp.Diff([]string{"a:x", "b:x", "finished:y"}, got); diff != "" {
		t.Fatalf("handler calls mismatch (-want +got):\n%s", diff)
	}
}

func TestBus_UnsubscribeRemovesOnlyOwnHandler(t *testing.T) {
	b := New()
	var got []string
	handler := func(name string) Handler[started] {
		return func(_ context.Context, e started) { got = append(got, name) }
	}
	unsubFirst := SubscribeTo(b, handler("first"))
	SubscribeTo(b, handler("second"))

	unsubFirst()
	unsubFirst()
	PublishTo(context.Background(), b, started{})
	require.Equal(t, []string{"second"}, got)
}

func TestBus_HandlerCanUnsubscribeDuringPublish(t *testing.T) {
	b := New()
	var calls int
	var unsub func()
	unsub = SubscribeTo(b, func(context.Context, started) {
		calls++
		unsub()
	})
	PublishTo(context.Background(), b, started{})
	PublishTo(context.Background(), b, started{})
	require.Equal(t, 1, calls)
}

func TestGlobalBus(t *testing.T) {
	Use(nil)
	unsub := Subscribe(func(context.Context, started) { t.Fatal("no bus installed") })
	Publish(context.Background(), started{})
	unsub()

	b := New()
	Use(b)
	defer Use(nil)

	var got started
	unsub = Subscribe(func(_ context.Context, e started) { got = e })
	defer unsub()
	Publish(context.Background(), started{Name: "op"})
	require.Equal(t, started{Name: "op"}, got)
}
