package control

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/rfcontrol-core/internal/device"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/database"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/mqtt"
	_ "github.com/nerrad567/rfcontrol-core/migrations" // registers the schema
)

const (
	owner    = "user-1"
	stranger = "user-2"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

type recordedCommand struct {
	deviceID, variant, action string
}

type fakeRecorder struct {
	commands []recordedCommand
}

func (f *fakeRecorder) WriteCommand(deviceID, variant, action string, _ time.Duration) {
	f.commands = append(f.commands, recordedCommand{deviceID, variant, action})
}

type fakeOwners struct {
	owned bool
	err   error
}

func (f fakeOwners) UserOwns(context.Context, string, string) (bool, error) {
	return f.owned, f.err
}

type fakeProfiles struct {
	profile device.Profile
	err     error
}

func (f fakeProfiles) SpecificDevice(context.Context, string) (device.Profile, error) {
	return f.profile, f.err
}

// fixture wires a Dispatcher to a real registry on a temp SQLite database.
type fixture struct {
	registry   *device.Registry
	publisher  *mockPublisher
	recorder   *fakeRecorder
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "control.db"),
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	require.NoError(t, db.Migrate(context.Background()))

	types := device.DefaultTypeRegistry()
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB, types), types)

	f := &fixture{
		registry:  registry,
		publisher: &mockPublisher{},
		recorder:  &fakeRecorder{},
	}
	f.dispatcher = newTestDispatcher(t, Options{
		Owners:    registry,
		Profiles:  registry,
		Publisher: f.publisher,
		Recorder:  f.recorder,
	})
	return f
}

func newTestDispatcher(t *testing.T, opts Options) *Dispatcher {
	t.Helper()

	if opts.Topics == nil {
		opts.Topics = mqtt.Topics{Prefix: "rfcontrol"}
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	d, err := NewDispatcher(opts)
	require.NoError(t, err)
	return d
}

// addRFDevice creates an RF device with on/off codes 101/202 and pulse 300.
func (f *fixture) addRFDevice(t *testing.T, ownerID string) string {
	t.Helper()

	params, err := json.Marshal(map[string]int{"on_code": 101, "off_code": 202, "pulse_length": 300})
	require.NoError(t, err)

	d, _, err := f.registry.AddDevice(context.Background(), device.NewDevice{
		Name:    "Lamp",
		OwnerID: ownerID,
		TypeID:  device.TypeRF,
		Params:  params,
	})
	require.NoError(t, err)
	return d.ID
}

func requestCount(d *Dispatcher, result string) float64 {
	return testutil.ToFloat64(d.metrics.Requests.WithLabelValues(result))
}

func TestDispatch_OwnerPublishesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID := f.addRFDevice(t, owner)

	var sent device.RFCommand
	f.publisher.
		On("Publish", mock.Anything, "rfcontrol/command/rf/"+deviceID, mock.MatchedBy(func(p []byte) bool {
			return json.Unmarshal(p, &sent) == nil
		})).
		Return(nil).
		Once()

	res, err := f.dispatcher.Dispatch(ctx, Request{UserID: owner, DeviceID: deviceID, Action: "on"})
	require.NoError(t, err)

	assert.Equal(t, StatePublished, res.State)
	assert.Equal(t, "rfcontrol/command/rf/"+deviceID, res.Topic)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, device.RFCommand{OnCode: 101, OffCode: 202, PulseLength: 300, Action: "on"}, sent)

	f.publisher.AssertExpectations(t)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)

	assert.Equal(t, []recordedCommand{{deviceID, "rf", "on"}}, f.recorder.commands)
	assert.Equal(t, 1.0, requestCount(f.dispatcher, resultPublished))
	assert.Equal(t, 0.0, requestCount(f.dispatcher, resultRejected))
}

func TestDispatch_NonOwnerIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID := f.addRFDevice(t, owner)

	res, err := f.dispatcher.Dispatch(ctx, Request{UserID: stranger, DeviceID: deviceID, Action: "on"})

	require.ErrorIs(t, err, device.ErrUnauthorized)
	assert.Equal(t, StateRejected, res.State)
	assert.Empty(t, res.Topic)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.recorder.commands)
	assert.Equal(t, 1.0, requestCount(f.dispatcher, resultRejected))
}

func TestDispatch_MissingDeviceLooksLikeForeignDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreignID := f.addRFDevice(t, owner)

	foreign, foreignErr := f.dispatcher.Dispatch(ctx, Request{UserID: stranger, DeviceID: foreignID, Action: "off"})
	missing, missingErr := f.dispatcher.Dispatch(ctx, Request{UserID: stranger, DeviceID: "dev-does-not-exist", Action: "off"})

	assert.Equal(t, foreign, missing)
	assert.Equal(t, foreignErr, missingErr)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 2.0, requestCount(f.dispatcher, resultRejected))
}

func TestDispatch_DeletedDeviceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID := f.addRFDevice(t, owner)

	require.NoError(t, f.registry.Delete(ctx, owner, deviceID))

	res, err := f.dispatcher.Dispatch(ctx, Request{UserID: owner, DeviceID: deviceID, Action: "on"})

	require.ErrorIs(t, err, device.ErrUnauthorized)
	assert.Equal(t, StateRejected, res.State)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_DeviceWithoutProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.registry.Add(ctx, "Bare", "", owner, device.TypeRF)
	require.NoError(t, err)

	res, err := f.dispatcher.Dispatch(ctx, Request{UserID: owner, DeviceID: d.ID, Action: "on"})

	require.ErrorIs(t, err, ErrProfileMissing)
	assert.Equal(t, StateFailed, res.State)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, requestCount(f.dispatcher, resultFailed))
}

func TestDispatch_EmptyAction(t *testing.T) {
	f := newFixture(t)
	deviceID := f.addRFDevice(t, owner)

	res, err := f.dispatcher.Dispatch(context.Background(), Request{UserID: owner, DeviceID: deviceID})

	require.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, StateFailed, res.State)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_PublishFailure(t *testing.T) {
	f := newFixture(t)
	deviceID := f.addRFDevice(t, owner)
	brokerErr := errors.New("broker unavailable")

	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(brokerErr).Once()

	res, err := f.dispatcher.Dispatch(context.Background(), Request{UserID: owner, DeviceID: deviceID, Action: "on"})

	require.ErrorIs(t, err, ErrPublishFailure)
	require.ErrorIs(t, err, brokerErr)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, f.recorder.commands)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
	assert.Equal(t, 1.0, requestCount(f.dispatcher, resultFailed))
	assert.Equal(t, 0.0, requestCount(f.dispatcher, resultPublished))
}

func TestDispatch_PublishTimeout(t *testing.T) {
	rf := &device.RFDevice{DeviceRef: "dev-1", OnCode: 1, OffCode: 2, PulseLength: 3}
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded).
		Once()

	d := newTestDispatcher(t, Options{
		Owners:         fakeOwners{owned: true},
		Profiles:       fakeProfiles{profile: rf},
		Publisher:      pub,
		PublishTimeout: 10 * time.Millisecond,
	})

	res, err := d.Dispatch(context.Background(), Request{UserID: owner, DeviceID: "dev-1", Action: "off"})

	require.ErrorIs(t, err, ErrPublishFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateFailed, res.State)
	pub.AssertExpectations(t)
}

func TestDispatch_StorageErrors(t *testing.T) {
	dbErr := errors.New("disk I/O error")

	tests := []struct {
		name     string
		owners   fakeOwners
		profiles fakeProfiles
	}{
		{
			name:   "ownership check fails",
			owners: fakeOwners{err: dbErr},
		},
		{
			name:     "profile load fails",
			owners:   fakeOwners{owned: true},
			profiles: fakeProfiles{err: dbErr},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			d := newTestDispatcher(t, Options{
				Owners:    tt.owners,
				Profiles:  tt.profiles,
				Publisher: pub,
			})

			res, err := d.Dispatch(context.Background(), Request{UserID: owner, DeviceID: "dev-1", Action: "on"})

			require.ErrorIs(t, err, dbErr)
			assert.NotErrorIs(t, err, device.ErrUnauthorized)
			assert.Equal(t, StateFailed, res.State)
			pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDispatch_ProfileVanishesAfterOwnershipCheck(t *testing.T) {
	pub := &mockPublisher{}
	d := newTestDispatcher(t, Options{
		Owners:    fakeOwners{owned: true},
		Profiles:  fakeProfiles{err: device.ErrDeviceNotFound},
		Publisher: pub,
	})

	res, err := d.Dispatch(context.Background(), Request{UserID: owner, DeviceID: "dev-1", Action: "on"})

	require.ErrorIs(t, err, device.ErrUnauthorized)
	assert.Equal(t, StateRejected, res.State)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_TopicPrefix(t *testing.T) {
	rf := &device.RFDevice{DeviceRef: "dev-9", OnCode: 1, OffCode: 2, PulseLength: 3}
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "home/command/rf/dev-9", mock.Anything).Return(nil).Once()

	d := newTestDispatcher(t, Options{
		Owners:    fakeOwners{owned: true},
		Profiles:  fakeProfiles{profile: rf},
		Publisher: pub,
		Topics:    mqtt.Topics{Prefix: "home"},
	})

	_, err := d.Dispatch(context.Background(), Request{UserID: owner, DeviceID: "dev-9", Action: "on"})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestNewDispatcher_RequiresPorts(t *testing.T) {
	valid := Options{
		Owners:    fakeOwners{},
		Profiles:  fakeProfiles{},
		Publisher: &mockPublisher{},
		Topics:    mqtt.Topics{},
	}

	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"no owners", func(o *Options) { o.Owners = nil }},
		{"no profiles", func(o *Options) { o.Profiles = nil }},
		{"no publisher", func(o *Options) { o.Publisher = nil }},
		{"no topics", func(o *Options) { o.Topics = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			_, err := NewDispatcher(opts)
			assert.Error(t, err)
		})
	}

	d, err := NewDispatcher(valid)
	require.NoError(t, err)
	assert.Equal(t, DefaultPublishTimeout, d.publishTimeout)
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewMetrics(reg)
	second := NewMetrics(reg)

	first.Requests.WithLabelValues(resultPublished).Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Requests.WithLabelValues(resultPublished)))

	n, err := testutil.GatherAndCount(reg, "rfcontrol_control_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

type stateLogger struct {
	noopLogger
	states []string
}

func (l *stateLogger) Debug(msg string, args ...any) {
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "state" {
			l.states = append(l.states, args[i+1].(string))
		}
	}
}

func TestDispatch_StatePath(t *testing.T) {
	rf := &device.RFDevice{DeviceRef: "dev-1", OnCode: 1, OffCode: 2, PulseLength: 3}

	tests := []struct {
		name       string
		action     string
		owners     fakeOwners
		profiles   fakeProfiles
		publishErr error
		want       []State
	}{
		{
			name:     "published",
			action:   "on",
			owners:   fakeOwners{owned: true},
			profiles: fakeProfiles{profile: rf},
			want:     []State{StateReceived, StateAuthorizing, StateAuthorized, StateDispatching, StatePublished},
		},
		{
			name:   "not owned",
			action: "on",
			owners: fakeOwners{owned: false},
			want:   []State{StateReceived, StateAuthorizing, StateUnauthorized, StateRejected},
		},
		{
			name:     "deleted after ownership check",
			action:   "on",
			owners:   fakeOwners{owned: true},
			profiles: fakeProfiles{err: device.ErrDeviceNotFound},
			want:     []State{StateReceived, StateAuthorizing, StateAuthorized, StateUnauthorized, StateRejected},
		},
		{
			name: "empty action",
			want: []State{StateReceived, StateFailed},
		},
		{
			name:   "ownership storage error",
			action: "on",
			owners: fakeOwners{err: errors.New("disk I/O error")},
			want:   []State{StateReceived, StateAuthorizing, StateFailed},
		},
		{
			name:     "no profile",
			action:   "on",
			owners:   fakeOwners{owned: true},
			profiles: fakeProfiles{err: device.ErrProfileNotFound},
			want:     []State{StateReceived, StateAuthorizing, StateAuthorized, StateFailed},
		},
		{
			name:       "publish failure",
			action:     "off",
			owners:     fakeOwners{owned: true},
			profiles:   fakeProfiles{profile: rf},
			publishErr: errors.New("broker unavailable"),
			want:       []State{StateReceived, StateAuthorizing, StateAuthorized, StateDispatching, StateFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(tt.publishErr).Maybe()
			log := &stateLogger{}

			d := newTestDispatcher(t, Options{
				Owners:    tt.owners,
				Profiles:  tt.profiles,
				Publisher: pub,
				Logger:    log,
			})

			res, _ := d.Dispatch(context.Background(), Request{UserID: owner, DeviceID: "dev-1", Action: tt.action})

			assert.Equal(t, tt.want, res.Path)
			assert.Equal(t, tt.want[len(tt.want)-1], res.State)
			assert.True(t, res.State.Terminal())

			logged := make([]string, len(tt.want))
			for i, s := range tt.want {
				logged[i] = string(s)
			}
			assert.Equal(t, logged, log.states)
		})
	}
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []State{StatePublished, StateRejected, StateFailed} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []State{StateReceived, StateAuthorizing, StateAuthorized, StateUnauthorized, StateDispatching} {
		assert.False(t, s.Terminal(), s)
	}
}
