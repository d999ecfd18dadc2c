package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/shipgraph/shipgraph/pkg/errors"
	"github.com/shipgraph/shipgraph/pkg/pipeline"
)

// configName is the per-repository config file looked up next to the
// repository root.
const configName = appName + ".toml"

// fileConfig holds the settings a shipgraph.toml may provide. Flags always
// win over the file.
type fileConfig struct {
	Server    string `toml:"github_server"`
	ConanPath string `toml:"conan_path"`
	Profile   string `toml:"conan_profile"`
	Target    string `toml:"target"`
	Conanfile string `toml:"conanfile"`
}

// loadFileConfig reads a config file. When path is empty the repository root
// is searched for shipgraph.toml; a missing file is not an error.
func loadFileConfig(path, repoPath string) (*fileConfig, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(repoPath, configName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, errors.Wrap(errors.ErrCodeBadConfig, err, "cannot read config file %s", path)
	}

	var cfg fileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadConfig, err, "cannot parse config file %s", path)
	}
	return &cfg, nil
}

// apply copies file settings into opts for every flag the user did not set
// on the command line.
func (f *fileConfig) apply(opts *pipeline.Options, changed func(name string) bool) {
	if f.Server != "" && !changed("github-server") {
		opts.Server = f.Server
	}
	if f.ConanPath != "" && !changed("conan-path") {
		opts.ConanPath = f.ConanPath
	}
	if f.Profile != "" && !changed("conan-profile") {
		opts.Profile = f.Profile
	}
	if f.Target != "" && !changed("target") {
		opts.Target = f.Target
	}
	if f.Conanfile != "" && !changed("conanfile") {
		opts.Conanfile = f.Conanfile
	}
}
