// Package server serves the console over ssh, one console per session.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"github.com/zond/hitres"
	"github.com/zond/hitres/console"
	"github.com/zond/hitres/pemfile"
	"github.com/zond/hitres/storage"
	"github.com/zond/hitres/structs"
	"golang.org/x/term"

	goccy "github.com/goccy/go-json"
	gossh "golang.org/x/crypto/ssh"
)

// RulesFile is where campaign rule sets are kept in the data dir.
const RulesFile = "rules.json"

type Config struct {
	SSHAddr string
	Dir     string
	Storage storage.Options
	// KeyBits is the size of a generated host key, 0 for the default.
	KeyBits int
	// Rules are the default campaign rules, used unless the rules file
	// already has a "default" campaign.
	Rules structs.RuleConfig
}

func DefaultConfig() Config {
	return Config{
		SSHAddr: "127.0.0.1:15000",
		Dir:     filepath.Join(os.Getenv("HOME"), ".hitres"),
		Rules:   structs.DefaultRules(),
	}
}

type Server struct {
	config Config
	store  *storage.Storage
	rules  *structs.RuleRegistry
	signer gossh.Signer
}

// New opens the storage and host key in config.Dir, creating what is missing.
func New(ctx context.Context, config Config) (*Server, error) {
	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, hitres.WithStack(err)
	}

	signer, generated, err := pemfile.KeyParams{
		KeyPath:       filepath.Join(config.Dir, "private.pem"),
		SSHPubKeyPath: filepath.Join(config.Dir, "public.pub"),
		Bits:          config.KeyBits,
	}.Signer()
	if err != nil {
		return nil, err
	}
	if generated {
		slog.Info("generated server key pair", "dir", config.Dir)
	}

	rules, err := loadRules(filepath.Join(config.Dir, RulesFile))
	if err != nil {
		return nil, err
	}
	rules.CompareAndSwap(console.DefaultCampaign, nil, &config.Rules)

	store, err := storage.New(ctx, config.Dir, config.Storage)
	if err != nil {
		return nil, err
	}
	return &Server{
		config: config,
		store:  store,
		rules:  rules,
		signer: signer,
	}, nil
}

func loadRules(path string) (*structs.RuleRegistry, error) {
	rules := structs.NewRuleRegistry()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rules, nil
	} else if err != nil {
		return nil, hitres.WithStack(err)
	}
	if err := goccy.Unmarshal(b, rules); err != nil {
		return nil, hitres.WithStack(errors.Wrapf(err, "parsing %s", path))
	}
	return rules, nil
}

// HandleSession runs a console until the client disconnects.
func (s *Server) HandleSession(sess ssh.Session) {
	sessionID, err := structs.NextID()
	if err != nil {
		slog.Error("creating session id", "error", err)
		return
	}
	ctx := storage.SetSessionID(sess.Context(), sessionID)
	logger := slog.With("session", sessionID, "user", sess.User(), "remote", sess.RemoteAddr().String())
	logger.Info("session started")
	defer logger.Info("session ended")

	t := term.NewTerminal(sess, "> ")
	c := console.New(ctx, t, s.store, s.rules)
	c.RulesPath = filepath.Join(s.config.Dir, RulesFile)
	fmt.Fprintf(t, "Welcome %s, session %s. Type /help for commands.\n", sess.User(), sessionID)
	if err := c.Process(); err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(t, "InternalServerError: %v\n", err)
		logger.Error("session failed", "error", err, "stack", hitres.StackTrace(err))
	}
}

// Serve accepts ssh connections on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &ssh.Server{
		Handler: s.HandleSession,
	}
	srv.AddHostKey(s.signer)
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	slog.Info("listening", "addr", l.Addr().String(), "publicKey", gossh.FingerprintSHA256(s.signer.PublicKey()))
	if err := srv.Serve(l); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return hitres.WithStack(err)
	}
	return nil
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.SSHAddr)
	if err != nil {
		return hitres.WithStack(err)
	}
	return s.Serve(ctx, l)
}

// Close closes the storage.
func (s *Server) Close() error {
	return s.store.Close()
}
