package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-gpt-go/internal/model"
	"line-gpt-go/pkg/tasks"
)

func newNewsFixture(t *testing.T, recipients []string) (*dispatcherFixture, NewsService) {
	f := newDispatcherFixture(t, DispatcherOptions{})
	f.news.items = []model.NewsItem{{Title: "Markets", Site: "FMP", PublishedDate: "2024-01-02"}}
	return f, NewNewsService(f.dispatcher, recipients)
}

func TestSendNowUsesConfiguredRecipients(t *testing.T) {
	f, svc := newNewsFixture(t, []string{"A", "B"})

	report, err := svc.SendNow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	require.Len(t, f.pusher.messages("A"), 1)
	assert.Contains(t, f.pusher.messages("A")[0], "1. Markets")
}

func TestSendNowOverridesRecipients(t *testing.T) {
	f, svc := newNewsFixture(t, []string{"A"})

	report, err := svc.SendNow(context.Background(), []string{"C"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Empty(t, f.pusher.messages("A"))
	assert.Len(t, f.pusher.messages("C"), 1)
}

func TestSendNowWithoutRecipientsSkipsFetch(t *testing.T) {
	f, svc := newNewsFixture(t, nil)

	report, err := svc.SendNow(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.Zero(t, f.news.calls)
}

func TestProcessNewsTaskFailsWhenFetchFails(t *testing.T) {
	f, svc := newNewsFixture(t, []string{"A"})
	f.news.err = &model.BackendError{Service: "news", Status: 500, Message: "down"}

	err := svc.Process(context.Background(), tasks.NewBroadcastTask(tasks.KindNews, "", nil))
	assert.Error(t, err)
	assert.Empty(t, f.pusher.messages("A"))
}

func TestProcessTextTask(t *testing.T) {
	f, svc := newNewsFixture(t, []string{"A"})

	err := svc.Process(context.Background(), tasks.NewBroadcastTask(tasks.KindText, "maintenance tonight", []string{"A", "B"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"maintenance tonight"}, f.pusher.messages("B"))
	assert.Zero(t, f.news.calls)
}

func TestProcessUnknownTaskIsDropped(t *testing.T) {
	_, svc := newNewsFixture(t, []string{"A"})
	assert.NoError(t, svc.Process(context.Background(), tasks.BroadcastTask{ID: "x", Kind: "weather"}))
}

func TestSchedulerTriggerPublishesNewsTask(t *testing.T) {
	f, svc := newNewsFixture(t, []string{"A"})
	s, err := NewNewsScheduler("08:30", InlinePublisher{Processor: svc}, time.Second)
	require.NoError(t, err)

	s.Trigger()
	assert.Len(t, f.pusher.messages("A"), 1)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestDailySpec(t *testing.T) {
	tests := []struct {
		clock   string
		want    string
		wantErr bool
	}{
		{"08:00", "0 8 * * *", false},
		{"23:59", "59 23 * * *", false},
		{"00:05", "5 0 * * *", false},
		{"8am", "", true},
		{"25:00", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			got, err := DailySpec(tt.clock)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
