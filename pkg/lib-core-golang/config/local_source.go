package config

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

type localSource struct {
	dir          string
	configFiles  []string
	envOverrides map[string]interface{}
}

func pickParamValue(obj interface{}, paramPath string) interface{} {
	parts := strings.Split(paramPath, "/")
	paramVal := obj
	for _, part := range parts {
		nested, ok := paramVal.(map[string]interface{})
		if !ok {
			return nil
		}
		if paramVal, ok = nested[part]; !ok {
			return nil
		}
	}
	return paramVal
}

func (s *localSource) GetParameters(ctx context.Context, params []param) (map[string]interface{}, error) {
	values := map[string]interface{}{}

	for _, configFile := range s.configFiles {
		buffer, err := ioutil.ReadFile(path.Join(s.dir, configFile))
		if err != nil {
			if configFile != "default.json" {
				continue
			}
			return nil, err
		}
		var configData map[string]interface{}
		if err := json.Unmarshal(buffer, &configData); err != nil {
			return nil, err
		}

		for _, param := range params {
			if paramVal := pickParamValue(configData, param.key()); paramVal != nil {
				values[param.key()] = paramVal
			}
		}
	}

	if s.envOverrides != nil {
		for _, param := range params {
			envName := pickParamValue(s.envOverrides, param.key())
			if envName == nil {
				continue
			}
			if envVal := os.Getenv(envName.(string)); envVal != "" {
				values[param.key()] = envVal
			}
		}
	}

	return values, nil
}

// LocalOpt is an option of a local config source
type LocalOpt func(s *localSource)

// LocalOpts are options of a local source
var LocalOpts = struct {
	// WithDir option to set local dir to load config from
	WithDir func(dir string) LocalOpt

	// WithAppEnv option will add an env specific config file
	WithAppEnv func(appEnv AppEnv) LocalOpt
}{
	WithDir: func(dir string) LocalOpt {
		return func(s *localSource) {
			s.dir = dir
		}
	},
	WithAppEnv: func(appEnv AppEnv) LocalOpt {
		return func(s *localSource) {
			s.configFiles = append(s.configFiles, appEnv.Name+".json")
		}
	},
}

// NewLocalSource creates a source that reads params from a local fs.
// It is similar to node-config, supports json and custom-environment-variables.json
func NewLocalSource(opts ...LocalOpt) (Source, error) {
	source := &localSource{
		configFiles: []string{"default.json"},
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		source.dir = filepath.Join(file, "..", "..", "..", "..", "config")
	} else {
		panic("Can not resolve config dir")
	}

	for _, opt := range opts {
		opt(source)
	}

	overridesFilePath := path.Join(source.dir, "custom-environment-variables.json")
	if overridesBuffer, err := ioutil.ReadFile(overridesFilePath); err == nil {
		envOverrides := map[string]interface{}{}
		if err := json.Unmarshal(overridesBuffer, &envOverrides); err != nil {
			return nil, err
		}
		source.envOverrides = envOverrides
	}

	return source, nil
}
