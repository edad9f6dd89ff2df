package api

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantumdatasynergy/contact-api/pkg/apiresponses"
	"github.com/quantumdatasynergy/contact-api/pkg/config"
)

// TransportStatus remembers the outcome of the last mail transport check.
// It is informational: submissions are accepted whatever it says.
type TransportStatus struct {
	mu        sync.RWMutex
	checked   bool
	ready     bool
	lastError string
	checkedAt time.Time
}

// Record stores the result of a readiness check.
func (t *TransportStatus) Record(err error, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checked = true
	t.ready = err == nil
	t.lastError = ""
	if err != nil {
		t.lastError = err.Error()
	}
	t.checkedAt = at
}

type MailTransportInfo struct {
	Provider  string     `json:"provider"`
	Host      string     `json:"host"`
	Status    string     `json:"status"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (t *TransportStatus) snapshot(provider, host string, exposeError bool) MailTransportInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info := MailTransportInfo{Provider: provider, Host: host, Status: "unchecked"}
	if !t.checked {
		return info
	}
	at := t.checkedAt
	info.CheckedAt = &at
	if t.ready {
		info.Status = "ready"
		return info
	}
	info.Status = "unreachable"
	if exposeError {
		info.Error = t.lastError
	}
	return info
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	Timestamp     string            `json:"timestamp"`
	Domain        string            `json:"domain"`
	Endpoints     map[string]string `json:"endpoints"`
	MailTransport MailTransportInfo `json:"mailTransport"`
}

type HealthController struct {
	cfg    config.Config
	host   string
	status *TransportStatus
	now    func() time.Time
}

// NewHealthController reports on the transport talking to host. status may
// be nil when no readiness check runs.
func NewHealthController(cfg config.Config, host string, status *TransportStatus) *HealthController {
	if status == nil {
		status = &TransportStatus{}
	}
	return &HealthController{cfg: cfg, host: host, status: status, now: time.Now}
}

func (hc *HealthController) BasePath() string { return "health" }

func (hc *HealthController) Handlers() []gin.HandlerFunc { return nil }

func (hc *HealthController) Register(rg *gin.RouterGroup) error {
	rg.GET("", hc.handleHealth)
	return nil
}

func (hc *HealthController) handleHealth(c *gin.Context) {
	apiresponses.RespondOK(c, HealthResponse{
		Status:    "OK",
		Service:   serviceLabel(hc.cfg.Mail.Provider, hc.host) + " for " + hc.cfg.Branding.Domain,
		Timestamp: hc.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Domain:    hc.cfg.Branding.Domain,
		Endpoints: map[string]string{
			"contact":    "/api/contact",
			"newsletter": "/api/newsletter",
		},
		MailTransport: hc.status.snapshot(providerName(hc.cfg.Mail.Provider), hc.host, hc.cfg.DevelopmentMode),
	})
}

func providerName(p string) string {
	if p == "" {
		return config.ProviderSMTP
	}
	return p
}

func serviceLabel(provider, host string) string {
	switch providerName(provider) {
	case config.ProviderResend:
		return "Resend"
	case config.ProviderLog:
		return "Log-only mail"
	default:
		if host == "smtp.gmail.com" {
			return "Gmail SMTP"
		}
		return "SMTP"
	}
}
