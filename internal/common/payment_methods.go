package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// PaymentMethod is one entry of the payment methods file
type PaymentMethod struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
}

type PaymentMethodsConfig struct {
	Methods []PaymentMethod `yaml:"payment_methods"`
}

// PaymentMethodCatalog is the set of accepted payment method codes. An empty
// catalog accepts any non-empty method.
type PaymentMethodCatalog struct {
	codes map[string]PaymentMethod
}

func NewPaymentMethodCatalog(methods []PaymentMethod) *PaymentMethodCatalog {
	catalog := &PaymentMethodCatalog{codes: make(map[string]PaymentMethod, len(methods))}
	for _, m := range methods {
		catalog.codes[strings.ToLower(m.Code)] = m
	}
	return catalog
}

func (c *PaymentMethodCatalog) Accepts(method string) bool {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return false
	}
	if len(c.codes) == 0 {
		return true
	}
	_, ok := c.codes[method]
	return ok
}

func (c *PaymentMethodCatalog) Len() int {
	return len(c.codes)
}

// LoadPaymentMethods reads the catalog from a YAML file. An empty path
// yields an empty catalog.
func LoadPaymentMethods(methodsFile string) (*PaymentMethodCatalog, error) {
	if methodsFile == "" {
		return NewPaymentMethodCatalog(nil), nil
	}

	methodsPath := methodsFile
	if !filepath.IsAbs(methodsFile) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		methodsPath = filepath.Join(wd, methodsFile)
	}

	data, err := os.ReadFile(methodsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", methodsFile, err)
	}

	var config PaymentMethodsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", methodsFile, err)
	}

	for i, method := range config.Methods {
		if strings.TrimSpace(method.Code) == "" {
			return nil, fmt.Errorf("payment method at index %d missing code", i)
		}
	}

	return NewPaymentMethodCatalog(config.Methods), nil
}
