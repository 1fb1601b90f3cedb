package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zond/hitres/structs"
	"gopkg.in/natefinch/lumberjack.v2"

	goccy "github.com/goccy/go-json"
)

type sessionIDKey struct{}

// SetSessionID returns a context carrying the session ID for audit entries.
func SetSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionID returns the session ID of ctx, if any.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok
}

// AuditLogger writes every change to targets as JSON lines to a rotating file.
type AuditLogger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	enc *goccy.Encoder
}

// AuditData is the interface for typed audit event data.
type AuditData interface {
	auditData()
}

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Time      string    `json:"time"`
	SessionID string    `json:"session_id,omitempty"`
	Event     string    `json:"event"`
	Data      AuditData `json:"data"`
}

// AuditTargetCreate is logged when a target is stored.
type AuditTargetCreate struct {
	Target   string `json:"target"`
	Name     string `json:"name"`
	Template string `json:"template,omitempty"`
}

func (AuditTargetCreate) auditData() {}

// AuditTargetUpdate is logged when a target's body or state is edited.
type AuditTargetUpdate struct {
	Target  string `json:"target"`
	Version int64  `json:"version"`
}

func (AuditTargetUpdate) auditData() {}

// AuditTargetDelete is logged when a target is removed.
type AuditTargetDelete struct {
	Target string `json:"target"`
}

func (AuditTargetDelete) auditData() {}

// AuditResolution is logged when an attack resolution is applied.
type AuditResolution struct {
	Target     string               `json:"target"`
	Resolution int64                `json:"resolution"`
	Seed       int64                `json:"seed"`
	HPLoss     float64              `json:"hp_loss"`
	FPLoss     float64              `json:"fp_loss"`
	Crippled   []structs.LocationID `json:"crippled,omitempty"`
}

func (AuditResolution) auditData() {}

// NewAuditLogger creates a new audit logger writing to path, rotating
// after maxSizeMB megabytes and keeping maxBackups old files.
func NewAuditLogger(path string, maxSizeMB, maxBackups int) (*AuditLogger, error) {
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	return &AuditLogger{
		out: out,
		enc: goccy.NewEncoder(out),
	}, nil
}

// Log writes a structured audit entry as JSON.
// Panics if encoding fails (indicates a bug in the typed AuditData structs).
func (a *AuditLogger) Log(ctx context.Context, event string, data AuditData) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessionID, _ := SessionID(ctx)
	if err := a.enc.Encode(AuditEntry{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	}); err != nil {
		panic(fmt.Sprintf("audit log encode failed: %v", err))
	}
}

// Close closes the audit log file.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Close()
}
