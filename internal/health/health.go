// Package health implements the liveness self-ping: a systemd watchdog kick
// plus an optional HTTP ping (e.g. a healthchecks.io check URL).
package health

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"terminbot/pkg/logx"
)

type Service struct {
	pingURL string
	http    *http.Client
	log     logx.Logger
}

func New(pingURL string, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		pingURL: strings.TrimSpace(pingURL),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// NotifyReady tells systemd startup finished. A no-op outside systemd.
func (s *Service) NotifyReady() {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		s.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		s.log.Debug("sd_notify ready sent")
	}
}

// Ping kicks the systemd watchdog and fetches the configured ping URL.
// Both are best-effort; a failed ping only logs.
func (s *Service) Ping(ctx context.Context) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		s.log.Warn("sd_notify watchdog failed", logx.Err(err))
	}

	if s.pingURL == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pingURL, nil)
	if err != nil {
		s.log.Warn("health ping request failed", logx.Err(err))
		return
	}
	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warn("health ping failed", logx.Err(err))
		return
	}
	_ = resp.Body.Close()
	s.log.Debug("health ping ok", logx.Int("status", resp.StatusCode))
}
