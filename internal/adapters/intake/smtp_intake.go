package intake

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-smtp"
	"github.com/mikey/email-triage/internal/adapters/mailfile"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/ports"
	"go.uber.org/zap"
)

// Headers names the headers the SMTP intake stamps on triaged mail
type Headers struct {
	Primary    string
	Sub        string
	Confidence string
	Duplicate  string
}

// Relay is the next hop triaged mail is forwarded to
type Relay struct {
	Enabled bool
	Address string
	Port    int
}

// pendingRelayTTL bounds how long a triage result is held for a message
// whose relay failed
const pendingRelayTTL = 24 * time.Hour

type pendingRelay struct {
	result *core.ProcessingResult
	at     time.Time
}

// SMTPIntake accepts mail over SMTP, triages it and optionally relays it
// with triage headers added
type SMTPIntake struct {
	service    ports.Pipeline
	logger     *zap.Logger
	listenAddr string
	domain     string
	headers    Headers
	relay      Relay
	server     *smtp.Server
	listener   net.Listener

	// results of messages answered with 451 after triage, keyed by
	// fingerprint, reused when the sender redelivers
	pendingMu sync.Mutex
	pending   map[string]pendingRelay
}

// NewSMTPIntake creates a new SMTP intake
func NewSMTPIntake(
	service ports.Pipeline,
	logger *zap.Logger,
	listenAddr string,
	domain string,
	headers Headers,
	relay Relay,
) *SMTPIntake {
	if domain == "" {
		domain = "localhost"
	}
	return &SMTPIntake{
		service:    service,
		logger:     logger,
		listenAddr: listenAddr,
		domain:     domain,
		headers:    headers,
		relay:      relay,
		pending:    make(map[string]pendingRelay),
	}
}

// Start starts the SMTP server
func (s *SMTPIntake) Start() error {
	s.server = smtp.NewServer(&smtpBackend{intake: s})
	s.server.Addr = s.listenAddr
	s.server.Domain = s.domain
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = 30 * 1024 * 1024
	s.server.MaxRecipients = 50

	l, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	s.listener = l

	s.logger.Info("SMTP intake starting", zap.String("address", l.Addr().String()))

	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			s.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the intake listens on once started
func (s *SMTPIntake) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the SMTP server
func (s *SMTPIntake) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// ProcessEmail processes an email without going through SMTP
func (s *SMTPIntake) ProcessEmail(ctx context.Context, email *core.Email) (*core.ProcessingResult, error) {
	return s.service.Process(ctx, email)
}

// stamp returns the message with the triage headers set, replacing any
// triage headers the sender supplied
func (s *SMTPIntake) stamp(raw []byte, result *core.ProcessingResult) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}

	sub := "None"
	if result.Classification.SubRequest != nil {
		sub = *result.Classification.SubRequest
	}
	confidence := "unknown"
	if c := result.Classification.Confidence; c != nil {
		confidence = strconv.FormatFloat(*c, 'f', -1, 64)
	}

	h.Set(s.headers.Duplicate, strconv.FormatBool(result.Duplicate))
	h.Set(s.headers.Confidence, confidence)
	h.Set(s.headers.Sub, sub)
	h.Set(s.headers.Primary, result.Classification.PrimaryRequest)

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, h); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := io.Copy(&out, br); err != nil {
		return nil, fmt.Errorf("failed to copy message body: %w", err)
	}
	return out.Bytes(), nil
}

// pendingResult returns the result kept for a message whose relay failed
func (s *SMTPIntake) pendingResult(fingerprint string) (*core.ProcessingResult, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	now := time.Now()
	for key, p := range s.pending {
		if now.Sub(p.at) > pendingRelayTTL {
			delete(s.pending, key)
		}
	}

	p, ok := s.pending[fingerprint]
	if !ok {
		return nil, false
	}
	return p.result, true
}

func (s *SMTPIntake) holdResult(fingerprint string, result *core.ProcessingResult) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[fingerprint] = pendingRelay{result: result, at: time.Now()}
}

func (s *SMTPIntake) releaseResult(fingerprint string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, fingerprint)
}

// sendToRelay forwards a message to the configured next hop
func (s *SMTPIntake) sendToRelay(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(s.relay.Address, strconv.Itoa(s.relay.Port))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			s.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

type smtpBackend struct {
	intake *SMTPIntake
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		intake:     b.intake,
		recipients: make([]string, 0),
	}, nil
}

type smtpSession struct {
	intake     *SMTPIntake
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data triages the message and relays it
func (s *smtpSession) Data(r io.Reader) error {
	logger := s.intake.logger

	raw, err := io.ReadAll(r)
	if err != nil {
		logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	email, err := mailfile.ParseMessage(bytes.NewReader(raw))
	if err != nil {
		logger.Warn("Rejecting malformed message", zap.Error(err), zap.String("sender", s.sender))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	fingerprint := core.Fingerprint(email.Text)
	result, held := s.intake.pendingResult(fingerprint)
	if held {
		logger.Info("Reusing triage result for redelivered message",
			zap.String("fingerprint", fingerprint),
			zap.String("sender", s.sender))
	} else {
		result, err = s.intake.service.Process(context.Background(), email)
		if err != nil {
			logger.Error("Failed to triage message", zap.Error(err), zap.String("sender", s.sender))
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 3, 0},
				Message:      "Triage failed, try again later",
			}
		}
	}

	logger.Info("Triaged message",
		zap.String("sender", s.sender),
		zap.Int("recipients", len(s.recipients)),
		zap.Bool("duplicate", result.Duplicate),
		zap.String("primary_request", result.Classification.PrimaryRequest))

	if !s.intake.relay.Enabled {
		return nil
	}

	stamped, err := s.intake.stamp(raw, result)
	if err != nil {
		logger.Error("Failed to add triage headers", zap.Error(err))
		return err
	}
	if err := s.intake.sendToRelay(s.sender, s.recipients, stamped); err != nil {
		logger.Error("Failed to relay message", zap.Error(err), zap.String("sender", s.sender))
		s.intake.holdResult(fingerprint, result)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 4, 0},
			Message:      "Relay unavailable, try again later",
		}
	}
	s.intake.releaseResult(fingerprint)

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
