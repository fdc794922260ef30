package config

import (
	"context"
	"flag"
	"os"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/lib-core-golang/diag"
)

const appEnvVar = "APP_ENV"

var logger = diag.CreateLogger()

// AppEnv represents app env
type AppEnv struct {
	// ServiceName is a name of a current service
	ServiceName string

	// Name is a env name. By default taken from APP_ENV
	Name string
}

// NewAppEnv creates a new instance of the app env from os env
// Will use "dev" by default and "test" when running under go test
func NewAppEnv(serviceName string) AppEnv {
	appEnv := os.Getenv(appEnvVar)
	if appEnv == "" {
		if v := flag.Lookup("test.v"); v == nil {
			appEnv = "dev"
		} else {
			appEnv = "test"
		}
	}
	return AppEnv{Name: appEnv, ServiceName: serviceName}
}

// Source is an abstraction to read params
type Source interface {
	GetParameters(ctx context.Context, params []param) (map[string]interface{}, error)
}

// SourceFactory is a func that creates an instance of a source
type SourceFactory func() (Source, error)

type param interface {
	key() string
	emptyValue() paramValue
}

type paramImpl struct {
	paramKey string
}

func (p paramImpl) key() string {
	return p.paramKey
}

func (p paramImpl) String() string {
	return "{key: " + p.paramKey + "}"
}

// StringParam represents params of string type
type StringParam struct {
	paramImpl
}

func (p StringParam) emptyValue() paramValue {
	return StringVal{val: new(string)}
}

// IntParam represents params of int type
type IntParam struct {
	paramImpl
}

func (p IntParam) emptyValue() paramValue {
	return IntVal{val: new(int)}
}

// BoolParam represents params of bool type
type BoolParam struct {
	paramImpl
}

func (p BoolParam) emptyValue() paramValue {
	return BoolVal{val: new(bool)}
}

// ServiceConfig is a loaded config with typed access to param values
type ServiceConfig interface {
	StringParam(p StringParam) StringVal
	IntParam(p IntParam) IntVal
	BoolParam(p BoolParam) BoolVal
}

type serviceConfig struct {
	values map[string]paramValue
}

func (cfg *serviceConfig) StringParam(p StringParam) StringVal {
	return cfg.values[p.key()].(StringVal)
}

func (cfg *serviceConfig) IntParam(p IntParam) IntVal {
	return cfg.values[p.key()].(IntVal)
}

func (cfg *serviceConfig) BoolParam(p BoolParam) BoolVal {
	return cfg.values[p.key()].(BoolVal)
}

// Builder is a tool to setup config
type Builder struct {
	appEnv         AppEnv
	paramsBuilders []*ParamsBuilder
}

// NewBuilder returns an instance of a config builder
func NewBuilder(appEnv AppEnv) *Builder {
	return &Builder{appEnv: appEnv}
}

// WithLocalSource creates a source factory for a local source
// that will point on configs dir
func (b *Builder) WithLocalSource() SourceFactory {
	return func() (Source, error) {
		return NewLocalSource(LocalOpts.WithAppEnv(b.appEnv))
	}
}

// NewParamsBuilder is a builder to build params bound to a given source
func (b *Builder) NewParamsBuilder(sourceFactory SourceFactory) *ParamsBuilder {
	pb := &ParamsBuilder{
		params:        []param{},
		sourceFactory: sourceFactory,
	}
	b.paramsBuilders = append(b.paramsBuilders, pb)
	return pb
}

// LoadConfig loads the config with sources and params built
func (b *Builder) LoadConfig() (ServiceConfig, error) {
	ctx := diag.ContextWithOperationID(context.Background(), uuid.NewV4().String())
	logger.Info(ctx, "Loading config values (env=%v)", b.appEnv.Name)

	cfg := &serviceConfig{values: map[string]paramValue{}}
	for _, paramsBuilder := range b.paramsBuilders {
		source, err := paramsBuilder.sourceFactory()
		if err != nil {
			return nil, err
		}
		values, err := source.GetParameters(ctx, paramsBuilder.params)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to fetch config values")
		}
		logger.Debug(ctx, "Fetched %v (of %v requested) values", len(values), len(paramsBuilder.params))
		for _, sourceParam := range paramsBuilder.params {
			value, ok := values[sourceParam.key()]
			if !ok {
				return nil, errors.Errorf("Parameter %v not found", sourceParam.key())
			}
			paramVal := sourceParam.emptyValue()
			if err := paramVal.setValue(value); err != nil {
				return nil, errors.Wrapf(err, "Failed to set parameter %v value", sourceParam.key())
			}
			cfg.values[sourceParam.key()] = paramVal
		}
	}
	return cfg, nil
}

// ParamsBuilder is a tool to build params bound to particular source
type ParamsBuilder struct {
	params        []param
	sourceFactory SourceFactory
}

// NewParam returns an instance of a param builder
func (b *ParamsBuilder) NewParam(key string) *ParamBuilder {
	return &ParamBuilder{paramKey: key, pb: b}
}

// ParamBuilder is a tool to build params
type ParamBuilder struct {
	paramKey string
	pb       *ParamsBuilder
}

// String creates an instance of a string param
func (b *ParamBuilder) String() StringParam {
	p := StringParam{paramImpl{paramKey: b.paramKey}}
	b.pb.params = append(b.pb.params, p)
	return p
}

// Int creates an instance of an int param
func (b *ParamBuilder) Int() IntParam {
	p := IntParam{paramImpl{paramKey: b.paramKey}}
	b.pb.params = append(b.pb.params, p)
	return p
}

// Bool creates an instance of a bool param
func (b *ParamBuilder) Bool() BoolParam {
	p := BoolParam{paramImpl{paramKey: b.paramKey}}
	b.pb.params = append(b.pb.params, p)
	return p
}
