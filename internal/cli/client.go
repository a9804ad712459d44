package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/app/progress"
	"github.com/studyquest/studyquest/internal/app/replica"
	"github.com/studyquest/studyquest/internal/daemon"
	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/infra/httpstore"
	"github.com/studyquest/studyquest/internal/security"
)

// session is one client command's view of the user's progress: a replica
// pulled from the server, with history written straight through.
type session struct {
	identity domain.Identity
	remote   *httpstore.Client
	replica  *replica.Replica
	svc      *progress.Service
}

// openSession resolves server and token from flags or config and loads
// the replica.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	server := cfg.Sync.ServerURL
	if flagServer != "" {
		server = flagServer
	}
	token := cfg.Sync.Token
	if flagToken != "" {
		token = flagToken
	}
	if token == "" {
		return nil, errors.New("no token: pass --token or set sync.token (see 'studyquest token issue')")
	}

	engine := cfg.NewEngine()
	return newSession(ctx, server, token, engine, cfg.Sync.ReplicaConfig(engine.NewSnapshot))
}

// newSession builds a session for the token's subject against server.
func newSession(ctx context.Context, server, token string, engine *engagement.Engine, rcfg replica.Config) (*session, error) {
	userID, err := security.Subject(token)
	if err != nil {
		return nil, err
	}

	remote := httpstore.New(server, token)
	rep := replica.New(userID, remote, rcfg)
	if err := rep.Load(ctx); err != nil {
		return nil, fmt.Errorf("load progress from %s: %w", server, err)
	}

	return &session{
		identity: security.StaticIdentity(userID),
		remote:   remote,
		replica:  rep,
		svc:      progress.NewService(engine, rep, progress.WithHistory(remote)),
	}, nil
}

func (s *session) userID(ctx context.Context) (string, error) {
	return s.identity.UserID(ctx)
}

// close pushes any pending change before the process exits.
func (s *session) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.replica.Close(ctx); err != nil {
		return fmt.Errorf("changes were not saved to the server: %w", err)
	}
	return nil
}

// withSession runs fn with an open session and always syncs afterwards.
func withSession(fn func(ctx context.Context, s *session, userID string) error) error {
	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	userID, err := s.userID(ctx)
	if err != nil {
		return err
	}
	runErr := fn(ctx, s, userID)
	closeErr := s.close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}
