package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/streakmates/sync-client/internal/api"
	"github.com/streakmates/sync-client/internal/chat"
	"github.com/streakmates/sync-client/internal/config"
	"github.com/streakmates/sync-client/internal/coordinator"
	"github.com/streakmates/sync-client/internal/roomstate"
	"github.com/streakmates/sync-client/internal/session"
	"github.com/streakmates/sync-client/internal/transport"
	"github.com/streakmates/sync-client/internal/unread"
	pkgconfig "github.com/streakmates/sync-client/pkg/config"
	pkglog "github.com/streakmates/sync-client/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ClientName: "sync-client"})
	logger := pkglog.L()

	logger.Info().Str("api", cfg.API.BaseURL).Str("realtime", cfg.Realtime.URL).Msg("starting sync client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create API client and resolve the session
	apiClient := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.Auth.Token,
		Timeout: cfg.API.Timeout,
	})

	self, err := apiClient.Me(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve current user")
	}

	sess := session.New()
	sess.Authenticate(*self, cfg.Auth.Token)
	logger.Info().Str(pkglog.FieldUserID, self.ID).Str(pkglog.FieldUsername, self.Username).Msg("authenticated")

	// Create stores
	roomStore := roomstate.NewStore(apiClient, sess)
	transcript := chat.NewTranscript(apiClient, sess)
	unreadSync := unread.NewSynchronizer(apiClient, cfg.Unread.MinFetchInterval)

	// Connect the push channel
	adapter := transport.NewAdapter(transport.Config{
		URL:            cfg.Realtime.URL,
		PingInterval:   cfg.Realtime.PingInterval,
		PongWait:       cfg.Realtime.PongWait,
		WriteWait:      cfg.Realtime.WriteWait,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		DialTimeout:    cfg.Realtime.DialTimeout,
		MaxBackoff:     cfg.Realtime.MaxBackoff,
	})
	adapter.OnStateChange(func(s transport.State) {
		logger.Info().Str(pkglog.FieldState, s.String()).Msg("push channel state changed")
	})
	if err := adapter.Connect(ctx, sess.Token()); err != nil {
		// Not fatal: the adapter keeps retrying in the background.
		logger.Warn().Err(err).Msg("initial push connect failed")
	}

	// Wire events to stores
	coord := coordinator.New(adapter, roomStore, transcript, unreadSync)
	coord.AttachSession()

	unreadSync.OnChange(func(n int) {
		logger.Info().Int("unread", n).Msg("unread count changed")
	})
	roomStore.OnRemoved(func(roomID string) {
		logger.Warn().Str(pkglog.FieldRoomID, roomID).Msg("removed from room")
		coord.Detach()
		transcript.Invalidate()
	})

	// Initial unread load
	if err := unreadSync.Refresh(ctx, true); err != nil {
		logger.Warn().Err(err).Msg("initial unread refresh failed")
	}

	// Enter a room: ROOM_ID if set, otherwise the first room the user
	// belongs to. An empty room list is authoritative, not an error.
	roomID := pkgconfig.GetEnv("ROOM_ID", "")
	if roomID == "" {
		rooms, err := apiClient.ListRooms(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to list rooms")
		}
		if len(rooms) == 0 {
			logger.Info().Msg("no rooms joined yet")
		} else {
			roomID = rooms[0].ID
		}
	}
	if roomID != "" {
		if err := roomStore.Load(ctx, roomID); err != nil {
			logger.Fatal().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to load room")
		}
		if err := transcript.Load(ctx, roomID); err != nil {
			logger.Fatal().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to load chat history")
		}
		coord.Attach(roomID)
		logger.Info().Str(pkglog.FieldRoomID, roomID).Msg("room attached")
	}

	// Session teardown order: room wiring, session wiring, channel, counter
	sess.OnLogout(func() {
		coord.Detach()
		coord.DetachSession()
		adapter.Close()
		unreadSync.Clear()
	})

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	sess.Logout()
}
