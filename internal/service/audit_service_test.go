package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/botadmin/internal/events"
)

func TestAuditServiceKeepsRecentEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	audit := NewAuditService(dispatcher, nil, 2)
	audit.RegisterHandlers()
	ctx := context.Background()

	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventAdminLoginFailed}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventMiniAppSearchPerformed}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventAdminLoginSucceeded}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventMiniAppUserVerified}))

	recent := audit.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, events.EventMiniAppUserVerified, recent[0].Type)
	assert.Equal(t, events.EventAdminLoginSucceeded, recent[1].Type)

	assert.Len(t, audit.Recent(1), 1)
}
