// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session runs command/response exchanges against a connected device
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/fmtvend/internal/metrics"
	"github.com/Thermoquad/fmtvend/pkg/vending"
)

// DispenseError is reported when a dispense fails without a message of its own
const DispenseError = "Error occurred upon dispense"

// ErrTransport marks failures of the underlying connection
var ErrTransport = errors.New("transport error")

// Transport moves one payload out and one reply back
type Transport interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
}

// Session binds a transport to a device profile.
// Logger, Metrics and Capture are optional.
type Session struct {
	Transport  Transport
	Profile    *vending.Profile
	ReplyDelay time.Duration
	Logger     logrus.FieldLogger
	Metrics    *metrics.Collector
	Capture    *vending.CaptureWriter

	// Now overrides the clock used for capture timestamps and durations
	Now func() time.Time

	mu sync.Mutex // one exchange in flight per transport
}

// New creates a session with the given reply delay
func New(t Transport, p *vending.Profile, replyDelay time.Duration) *Session {
	return &Session{Transport: t, Profile: p, ReplyDelay: replyDelay}
}

// Exchange sends the payload of cmd, waits the reply delay, reads the reply
// and decodes it. Every outcome is reported as a result.
func (s *Session) Exchange(ctx context.Context, cmd vending.Command) vending.ExchangeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	start := s.now()
	log := s.logger().WithFields(logrus.Fields{
		"profile":  s.Profile.Name(),
		"command":  cmd.String(),
		"exchange": id,
	})

	rec := vending.CaptureRecord{
		ID:      id,
		Time:    start,
		Profile: s.Profile.Name(),
		Command: cmd.String(),
	}

	res, kind := s.exchange(ctx, cmd, log, &rec)

	if s.Metrics != nil {
		s.Metrics.Observe(s.Profile.Name(), cmd.String(), res.Status, kind, s.now().Sub(start))
	}

	if s.Capture != nil && rec.Sent != nil {
		if err := s.Capture.Write(rec); err != nil {
			log.WithError(err).Warn("Failed to write capture record")
		}
	}

	if res.Status {
		log.WithField("response", res.Response.String()).Info(res.Log)
	} else {
		log.WithField("kind", kind).Error(res.Error)
	}
	return res
}

func (s *Session) exchange(ctx context.Context, cmd vending.Command, log logrus.FieldLogger, rec *vending.CaptureRecord) (vending.ExchangeResult, string) {
	payload, err := s.Profile.PayloadBytes(cmd)
	if err != nil {
		return vending.Failure(cmd, err), vending.ErrorKind(err)
	}

	if err := ctx.Err(); err != nil {
		return vending.Failure(cmd, err), "canceled"
	}

	log.WithField("payload", vending.Frame(payload).String()).Debug("Sending request")
	if err := s.Transport.Send(payload); err != nil {
		err = fmt.Errorf("%w: send: %v", ErrTransport, err)
		return vending.Failure(cmd, err), "transport"
	}
	rec.Sent = payload

	if err := s.wait(ctx); err != nil {
		return vending.Failure(cmd, err), "canceled"
	}

	reply, err := s.Transport.Receive()
	if err != nil {
		err = fmt.Errorf("%w: receive: %v", ErrTransport, err)
		return vending.Failure(cmd, err), "transport"
	}
	rec.Received = reply

	res := s.Profile.Dispatch(cmd, reply)
	if res.Status {
		return res, ""
	}
	return res, vending.ErrorKind(res.Err)
}

// wait sleeps the reply delay or returns early when ctx is done
func (s *Session) wait(ctx context.Context) error {
	if s.ReplyDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.ReplyDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExchangeName looks up a command by its symbolic name and exchanges it
func (s *Session) ExchangeName(ctx context.Context, name string) vending.ExchangeResult {
	cmd, err := vending.ParseCommand(name)
	if err != nil {
		s.logger().WithField("command", name).Error(err.Error())
		return vending.Failure(vending.CmdUnknown, err)
	}
	return s.Exchange(ctx, cmd)
}

// Status requests the machine status
func (s *Session) Status(ctx context.Context) vending.ExchangeResult {
	return s.Exchange(ctx, vending.CmdGetMachineStatus)
}

// Firmware requests the firmware version
func (s *Session) Firmware(ctx context.Context) vending.ExchangeResult {
	return s.Exchange(ctx, vending.CmdGetFirmwareVersion)
}

// Dispense drops one item from bay 1..5
func (s *Session) Dispense(ctx context.Context, bay int) vending.ExchangeResult {
	cmd, err := vending.DispenseCommand(bay)
	if err != nil {
		s.logger().WithField("bay", bay).Error(err.Error())
		return vending.Failure(vending.CmdUnknown, err)
	}

	res := s.Exchange(ctx, cmd)
	if !res.Status && res.Error == "" {
		res.Error = DispenseError
	}
	return res
}

func (s *Session) logger() logrus.FieldLogger {
	if s.Logger == nil {
		return discard
	}
	return s.Logger
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
