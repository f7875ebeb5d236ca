package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"nyx/internal/domain"
	nyxlog "nyx/internal/log"
	"nyx/internal/media"
	"nyx/internal/relay"
	"nyx/internal/services/call"
	identitysvc "nyx/internal/services/identity"
	messagesvc "nyx/internal/services/message"
	"nyx/internal/store"
)

// Wire bundles the stores, clients and services built from a Config.
type Wire struct {
	Config   *Config
	Log      *nyxlog.Backend
	DB       *store.BoltStore
	Keys     *store.Keystore
	Relay    *relay.Client
	Blobs    domain.BlobStore
	Devices  *media.StaticDevices
	Identity *identitysvc.Service
}

// NewWire constructs the dependency graph from cfg, which must have passed
// FixupAndValidate.
func NewWire(ctx context.Context, cfg *Config) (*Wire, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}
	backend, err := nyxlog.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, err
	}

	db, err := store.OpenBoltStore(cfg.DatabasePath())
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	blobs, err := newBlobStore(ctx, cfg.Blob)
	if err != nil {
		_ = db.Close()
		_ = backend.Close()
		return nil, err
	}

	keys := store.NewKeystore(db)
	rc := relay.NewClient(cfg.Relay.URL, backend.GetLogger("relay"))
	w := &Wire{
		Config:   cfg,
		Log:      backend,
		DB:       db,
		Keys:     keys,
		Relay:    rc,
		Blobs:    blobs,
		Devices:  media.NewStaticDevices(backend.GetLogger("media")),
		Identity: identitysvc.New(keys, db, rc, backend.GetLogger("identity")),
	}
	backend.GetLogger("app").Debugf("home %s, relay %s, blobs %s", cfg.Home, cfg.Relay.URL, cfg.Blob.Backend)
	return w, nil
}

func newBlobStore(ctx context.Context, cfg *Blob) (domain.BlobStore, error) {
	switch cfg.Backend {
	case BlobS3:
		return store.NewS3BlobStore(ctx, store.S3Config{
			Bucket:        cfg.S3.Bucket,
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			UsePathStyle:  cfg.S3.UsePathStyle,
			PresignExpiry: cfg.S3.PresignExpiry,
		})
	case BlobDir:
		return store.NewDirBlobStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("blob backend %q", cfg.Backend)
	}
}

// Messages returns a message service acting as me.
func (w *Wire) Messages(me domain.Identity) *messagesvc.Service {
	return messagesvc.New(me, w.Relay, w.Relay, w.Blobs, w.Identity, w.Log.GetLogger("message"))
}

// Calls returns an initialized call manager for me. Calls from users on the
// identity's block list never ring. The caller must Close it.
func (w *Wire) Calls(ctx context.Context, me domain.Identity) (*call.Manager, error) {
	m := call.New(
		me.SessionID,
		w.Relay,
		w.Relay,
		w.Identity,
		w.Devices,
		call.NewPionFactory(call.ICEConfiguration(w.Config.WebRTC.ICEServers)),
		w.Log.GetLogger("call"),
		call.Options{
			DeclineDelay:      w.Config.WebRTC.DeclineDelay,
			RejectDeleteDelay: w.Config.WebRTC.RejectDeleteDelay,
			RingTimeout:       w.Config.WebRTC.RingTimeout,
		},
	)
	if err := m.Init(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the database and log file.
func (w *Wire) Close() error {
	return errors.Join(w.DB.Close(), w.Log.Close())
}
