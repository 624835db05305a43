package env

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkerFile is the YAML configuration of the work command.
type WorkerFile struct {
	Servers  []string `yaml:"servers"`
	Password string   `yaml:"password"`

	Queues    []string      `yaml:"queues"`
	Count     int           `yaml:"count"`
	Timeout   time.Duration `yaml:"timeout"`
	Marshaler string        `yaml:"marshaler"`

	// NackOnError defaults to true
	NackOnError *bool `yaml:"nack_on_error"`

	// HTTP is the address of the health endpoint, empty to disable it
	HTTP string `yaml:"http"`
}

func LoadWorkerFile(path string) (*WorkerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseWorkerFile(data)
}

func ParseWorkerFile(data []byte) (*WorkerFile, error) {
	file := &WorkerFile{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, err
	}

	return file, nil
}

func (f *WorkerFile) NacksOnError() bool {
	return f.NackOnError == nil || *f.NackOnError
}
