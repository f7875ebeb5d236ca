package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	nyxlog "nyx/internal/log"
)

const (
	defaultLogLevel = "NOTICE"
	defaultRelayURL = "http://127.0.0.1:8080"

	// ConfigFile and DatabaseFile live in the home directory.
	ConfigFile   = "nyx.toml"
	DatabaseFile = "nyx.db"

	BlobDir = "dir"
	BlobS3  = "s3"
)

var defaultICEServers = []string{
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (l *Logging) validate() error {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	l.Level = strings.ToUpper(l.Level)
	if !nyxlog.ValidLevel(l.Level) {
		return fmt.Errorf("config: Logging: Level '%v' is invalid", l.Level)
	}
	return nil
}

// Relay locates the signaling relay.
type Relay struct {
	URL string
}

func (r *Relay) validate() error {
	if r.URL == "" {
		r.URL = defaultRelayURL
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: Relay: URL '%v' is not an http(s) URL", r.URL)
	}
	return nil
}

// WebRTC configures the call transport.
type WebRTC struct {
	// ICEServers are STUN/TURN URLs.
	ICEServers []string

	// RingTimeout hangs up an unanswered outgoing call. Zero rings forever.
	RingTimeout time.Duration

	// DeclineDelay is how long "Call Declined" shows before going idle.
	DeclineDelay time.Duration

	// RejectDeleteDelay is how long a rejected record is kept so the caller
	// can see the rejection.
	RejectDeleteDelay time.Duration
}

func (w *WebRTC) validate() error {
	if len(w.ICEServers) == 0 {
		w.ICEServers = append([]string(nil), defaultICEServers...)
	}
	for _, s := range w.ICEServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "turn:") && !strings.HasPrefix(s, "turns:") {
			return fmt.Errorf("config: WebRTC: ICE server '%v' is not a stun/turn URL", s)
		}
	}
	if w.RingTimeout < 0 || w.DeclineDelay < 0 || w.RejectDeleteDelay < 0 {
		return errors.New("config: WebRTC: durations must not be negative")
	}
	return nil
}

// S3 configures the S3 attachment store.
type S3 struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PresignExpiry time.Duration
}

// Blob selects where sealed attachments are uploaded.
type Blob struct {
	// Backend is "dir" (default) or "s3".
	Backend string

	// Dir is the attachment directory for the dir backend. Relative paths
	// are resolved against the home directory.
	Dir string

	S3 *S3
}

func (b *Blob) validate(home string) error {
	switch b.Backend {
	case "", BlobDir:
		b.Backend = BlobDir
		if b.Dir == "" {
			b.Dir = "blobs"
		}
		if !filepath.IsAbs(b.Dir) {
			b.Dir = filepath.Join(home, b.Dir)
		}
	case BlobS3:
		if b.S3 == nil || b.S3.Bucket == "" {
			return errors.New("config: Blob: S3.Bucket is not set")
		}
		if b.S3.Region == "" {
			b.S3.Region = "us-east-1"
		}
	default:
		return fmt.Errorf("config: Blob: Backend '%v' is invalid", b.Backend)
	}
	return nil
}

// Config is the client configuration.
type Config struct {
	// Home is the data directory. It is set by the caller, never read from
	// the file.
	Home string `toml:"-"`

	Logging *Logging
	Relay   *Relay
	WebRTC  *WebRTC
	Blob    *Blob
}

// FixupAndValidate applies defaults to config entries and validates the
// result.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Home == "" {
		return errors.New("config: home directory is not set")
	}
	if cfg.Logging == nil {
		cfg.Logging = &Logging{}
	}
	if cfg.Relay == nil {
		cfg.Relay = &Relay{}
	}
	if cfg.WebRTC == nil {
		cfg.WebRTC = &WebRTC{}
	}
	if cfg.Blob == nil {
		cfg.Blob = &Blob{}
	}
	if cfg.Logging.File != "" && !filepath.IsAbs(cfg.Logging.File) {
		cfg.Logging.File = filepath.Join(cfg.Home, cfg.Logging.File)
	}

	if err := cfg.Logging.validate(); err != nil {
		return err
	}
	if err := cfg.Relay.validate(); err != nil {
		return err
	}
	if err := cfg.WebRTC.validate(); err != nil {
		return err
	}
	return cfg.Blob.validate(cfg.Home)
}

// DatabasePath is the bbolt file holding the sealed identity and settings.
func (cfg *Config) DatabasePath() string {
	return filepath.Join(cfg.Home, DatabaseFile)
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte, home string) (*Config, error) {
	cfg := &Config{Home: home}
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the config file in home. A missing file yields the
// defaults.
func LoadFile(home string) (*Config, error) {
	b, err := os.ReadFile(filepath.Join(home, ConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		b = nil
	} else if err != nil {
		return nil, err
	}
	return Load(b, home)
}
