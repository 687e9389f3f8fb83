package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	transactor        Transactor
	employeeStore     EmployeeStore
	guarantorStore    GuarantorStore
	grantTypeStore    GrantTypeStore
	sequenceStore     CodeSequenceStore
	loanStore         LoanStore
	paymentStore      PaymentStore
	outboxStore       OutboxStore
	codeAllocator     CodeAllocator
	highWaterMark     *HighWaterMark
	projectors        *LoanProjectorRegistry
	now               func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTransactor(tx Transactor) Option {
	return func(b *serviceBuilder) {
		b.transactor = tx
	}
}

func WithEmployeeStore(store EmployeeStore) Option {
	return func(b *serviceBuilder) {
		b.employeeStore = store
	}
}

func WithGuarantorStore(store GuarantorStore) Option {
	return func(b *serviceBuilder) {
		b.guarantorStore = store
	}
}

func WithGrantTypeStore(store GrantTypeStore) Option {
	return func(b *serviceBuilder) {
		b.grantTypeStore = store
	}
}

func WithCodeSequenceStore(store CodeSequenceStore) Option {
	return func(b *serviceBuilder) {
		b.sequenceStore = store
	}
}

func WithLoanStore(store LoanStore) Option {
	return func(b *serviceBuilder) {
		b.loanStore = store
	}
}

func WithPaymentStore(store PaymentStore) Option {
	return func(b *serviceBuilder) {
		b.paymentStore = store
	}
}

func WithOutboxStore(store OutboxStore) Option {
	return func(b *serviceBuilder) {
		b.outboxStore = store
	}
}

// WithCodeAllocator overrides the allocator otherwise built from
// Config.Codes.
func WithCodeAllocator(allocator CodeAllocator) Option {
	return func(b *serviceBuilder) {
		b.codeAllocator = allocator
	}
}

func WithHighWaterMark(mark *HighWaterMark) Option {
	return func(b *serviceBuilder) {
		b.highWaterMark = mark
	}
}

// WithEventHandler registers handler under name for outbox dispatch.
// Handlers run in name order.
func WithEventHandler(name string, handler LoanEventHandler) Option {
	return func(b *serviceBuilder) {
		if b.projectors == nil {
			b.projectors = NewLoanProjectorRegistry()
		}
		b.projectors.Register(name, handler)
	}
}

func WithProjectorRegistry(registry *LoanProjectorRegistry) Option {
	return func(b *serviceBuilder) {
		b.projectors = registry
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("loans", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now:             utcNow,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return loansErrorMapper(err)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader serves a fixed raw config map, e.g. one decoded from
// a file by the host application.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	codes := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Codes.Prefix) != "" {
		codes["prefix"] = cfg.Codes.Prefix
	}
	if includeZero || cfg.Codes.Width > 0 {
		codes["width"] = cfg.Codes.Width
	}
	if includeZero || strings.TrimSpace(cfg.Codes.Strategy) != "" {
		codes["strategy"] = cfg.Codes.Strategy
	}
	if includeZero || strings.TrimSpace(cfg.Codes.SequenceName) != "" {
		codes["sequence_name"] = cfg.Codes.SequenceName
	}
	if includeZero || cfg.Codes.MaxAttempts > 0 {
		codes["max_attempts"] = cfg.Codes.MaxAttempts
	}
	if len(codes) > 0 {
		layer["codes"] = codes
	}

	if includeZero || cfg.Loans.MaxTermMonths > 0 {
		layer["loans"] = map[string]any{
			"max_term_months": cfg.Loans.MaxTermMonths,
		}
	}

	reminders := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Reminders.Schedule) != "" {
		reminders["schedule"] = cfg.Reminders.Schedule
	}
	if includeZero || cfg.Reminders.LeadDays > 0 {
		reminders["lead_days"] = cfg.Reminders.LeadDays
	}
	if len(reminders) > 0 {
		layer["reminders"] = reminders
	}

	outbox := map[string]any{}
	if includeZero || cfg.Outbox.BatchSize > 0 {
		outbox["batch_size"] = cfg.Outbox.BatchSize
	}
	if includeZero || cfg.Outbox.MaxAttempts > 0 {
		outbox["max_attempts"] = cfg.Outbox.MaxAttempts
	}
	if len(outbox) > 0 {
		layer["outbox"] = outbox
	}
	return layer
}
