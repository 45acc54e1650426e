package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/rfcontrol-core/internal/device"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultPublishTimeout bounds a single publish when no timeout is configured.
const DefaultPublishTimeout = 5 * time.Second

// Publisher delivers a serialised command to the transmitter channel.
// Implementations must honour ctx cancellation.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// OwnershipChecker answers whether a user owns a device. A device that does
// not exist is reported as not owned with a nil error.
type OwnershipChecker interface {
	UserOwns(ctx context.Context, userID, deviceID string) (bool, error)
}

// ProfileLoader loads the hardware profile for a device.
type ProfileLoader interface {
	SpecificDevice(ctx context.Context, deviceID string) (device.Profile, error)
}

// Topics builds command topics.
type Topics interface {
	Command(variant, deviceID string) string
}

// CommandRecorder receives a record of each published command.
type CommandRecorder interface {
	WriteCommand(deviceID, variant, action string, latency time.Duration)
}

// Logger defines the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Dispatcher. Owners, Profiles, Publisher and Topics
// are required.
type Options struct {
	Owners         OwnershipChecker
	Profiles       ProfileLoader
	Publisher      Publisher
	Topics         Topics
	Recorder       CommandRecorder
	Registerer     prometheus.Registerer
	PublishTimeout time.Duration
	Logger         Logger
}

// Dispatcher authorises control requests and publishes device commands.
//
// A command is published only after an ownership check for the requesting
// user has succeeded within the same request. Every other path ends without
// a publish.
type Dispatcher struct {
	owners         OwnershipChecker
	profiles       ProfileLoader
	publisher      Publisher
	topics         Topics
	recorder       CommandRecorder
	metrics        *Metrics
	publishTimeout time.Duration
	logger         Logger
	now            func() time.Time
}

// NewDispatcher creates a Dispatcher from opts.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	switch {
	case opts.Owners == nil:
		return nil, errors.New("control: ownership checker is required")
	case opts.Profiles == nil:
		return nil, errors.New("control: profile loader is required")
	case opts.Publisher == nil:
		return nil, errors.New("control: publisher is required")
	case opts.Topics == nil:
		return nil, errors.New("control: topics is required")
	}

	d := &Dispatcher{
		owners:         opts.Owners,
		profiles:       opts.Profiles,
		publisher:      opts.Publisher,
		topics:         opts.Topics,
		recorder:       opts.Recorder,
		metrics:        NewMetrics(opts.Registerer),
		publishTimeout: opts.PublishTimeout,
		logger:         opts.Logger,
		now:            time.Now,
	}
	if d.publishTimeout <= 0 {
		d.publishTimeout = DefaultPublishTimeout
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	return d, nil
}

// Dispatch runs one request through the control lifecycle and returns its
// terminal Result. The error is nil only when the command was published.
//
// Rejections return device.ErrUnauthorized whether the device belongs to
// another user or does not exist at all.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	t := &transitions{logger: d.logger, req: req}
	t.enter(StateReceived)

	if req.Action == "" {
		d.observe(resultFailed)
		return t.finish(StateFailed, msgInvalidAction, ""), ErrInvalidAction
	}

	t.enter(StateAuthorizing)
	owned, err := d.owners.UserOwns(ctx, req.UserID, req.DeviceID)
	if err != nil {
		d.logger.Error("ownership check failed", "device_id", req.DeviceID, "error", err)
		d.observe(resultFailed)
		return t.finish(StateFailed, msgInternal, ""), fmt.Errorf("checking ownership: %w", err)
	}
	if !owned {
		return d.reject(t), device.ErrUnauthorized
	}

	t.enter(StateAuthorized)
	profile, err := d.profiles.SpecificDevice(ctx, req.DeviceID)
	switch {
	case errors.Is(err, device.ErrProfileNotFound):
		d.observe(resultFailed)
		return t.finish(StateFailed, msgProfileMissing, ""), ErrProfileMissing
	case errors.Is(err, device.ErrDeviceNotFound):
		// Deleted between the ownership check and the profile load.
		return d.reject(t), device.ErrUnauthorized
	case err != nil:
		d.logger.Error("loading device profile failed", "device_id", req.DeviceID, "error", err)
		d.observe(resultFailed)
		return t.finish(StateFailed, msgInternal, ""), fmt.Errorf("loading profile: %w", err)
	}

	payload, err := json.Marshal(profile.Command(req.Action))
	if err != nil {
		d.observe(resultFailed)
		return t.finish(StateFailed, msgInternal, ""), fmt.Errorf("encoding command: %w", err)
	}

	t.enter(StateDispatching)
	variant := string(profile.Variant())
	topic := d.topics.Command(variant, req.DeviceID)

	pubCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	start := d.now()
	err = d.publisher.Publish(pubCtx, topic, payload)
	latency := d.now().Sub(start)
	d.metrics.PublishSeconds.Observe(latency.Seconds())

	if err != nil {
		d.logger.Warn("command publish failed",
			"device_id", req.DeviceID,
			"topic", topic,
			"error", err,
		)
		d.observe(resultFailed)
		return t.finish(StateFailed, msgPublishFailed, topic),
			fmt.Errorf("%w: %w", ErrPublishFailure, err)
	}

	d.observe(resultPublished)
	if d.recorder != nil {
		d.recorder.WriteCommand(req.DeviceID, variant, req.Action, latency)
	}
	d.logger.Info("command published",
		"device_id", req.DeviceID,
		"action", req.Action,
		"topic", topic,
	)

	return t.finish(StatePublished, msgPublished, topic), nil
}

func (d *Dispatcher) reject(t *transitions) Result {
	t.enter(StateUnauthorized)
	d.logger.Info("control request rejected",
		"user_id", t.req.UserID,
		"device_id", t.req.DeviceID,
	)
	d.observe(resultRejected)
	return t.finish(StateRejected, msgRejected, "")
}

func (d *Dispatcher) observe(result string) {
	d.metrics.Requests.WithLabelValues(result).Inc()
}

// transitions records the states one request passes through.
type transitions struct {
	logger Logger
	req    Request
	path   []State
}

func (t *transitions) enter(s State) {
	t.path = append(t.path, s)
	t.logger.Debug("control state", "device_id", t.req.DeviceID, "state", string(s))
}

func (t *transitions) finish(s State, msg, topic string) Result {
	t.enter(s)
	return Result{State: s, Message: msg, Topic: topic, Path: t.path}
}
