package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/surfbill/surfbill/internal/types"
	"github.com/surfbill/surfbill/internal/validator"
)

type Configuration struct {
	Company   CompanyConfig   `mapstructure:"company"`
	Invoicing InvoicingConfig `mapstructure:"invoicing" validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	PDF       PDFConfig       `mapstructure:"pdf"`
	Logging   LoggingConfig   `mapstructure:"logging" validate:"required"`
}

// CompanyConfig holds the issuing business details printed on every
// invoice. VATNumber is the Italian partita IVA, SDI the electronic
// invoicing recipient code.
type CompanyConfig struct {
	Name       string `mapstructure:"name"`
	Address    string `mapstructure:"address"`
	City       string `mapstructure:"city"`
	PostalCode string `mapstructure:"postal_code"`
	Country    string `mapstructure:"country"`
	VATNumber  string `mapstructure:"vat_number"`
	SDI        string `mapstructure:"sdi"`
	Phone      string `mapstructure:"phone"`
	Email      string `mapstructure:"email"`
	IBAN       string `mapstructure:"iban"`
}

type InvoicingConfig struct {
	// VATRate is the fraction applied to the invoice subtotal (0.22 = 22%)
	VATRate       float64 `mapstructure:"vat_rate" validate:"gte=0,lte=1"`
	DefaultSeries string  `mapstructure:"default_series" validate:"required"`
	NumberPadding int     `mapstructure:"number_padding" validate:"gte=1,lte=12"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
	// BackupRetention bounds both full snapshots and per-invoice
	// overwrite revisions kept on disk
	BackupRetention int `mapstructure:"backup_retention" validate:"gte=1"`
}

type PDFConfig struct {
	FontSize     float64 `mapstructure:"font_size"`
	MarginTop    float64 `mapstructure:"margin_top"`
	MarginBottom float64 `mapstructure:"margin_bottom"`
	MarginLeft   float64 `mapstructure:"margin_left"`
	MarginRight  float64 `mapstructure:"margin_right"`
	Title        string  `mapstructure:"title"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.surfbill")

	v.SetEnvPrefix("SURFBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file if exists; env vars and defaults cover the rest
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("invoicing.vat_rate", 0.22)
	v.SetDefault("invoicing.default_series", types.SeriesDefault)
	v.SetDefault("invoicing.number_padding", 4)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.backup_retention", 5)
	v.SetDefault("pdf.font_size", 10)
	v.SetDefault("pdf.margin_top", 2.0)
	v.SetDefault("pdf.margin_bottom", 2.0)
	v.SetDefault("pdf.margin_left", 2.0)
	v.SetDefault("pdf.margin_right", 2.0)
	v.SetDefault("pdf.title", "RICEVUTA")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
}

func (c Configuration) Validate() error {
	return validator.GetValidator().Struct(c)
}

// GetDefaultConfig returns a default configuration for tests and scripts
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Company: CompanyConfig{
			Name: "Pension Flora",
		},
		Invoicing: InvoicingConfig{
			VATRate:       0.22,
			DefaultSeries: types.SeriesDefault,
			NumberPadding: 4,
		},
		Storage: StorageConfig{
			DataDir:         "data",
			BackupRetention: 5,
		},
		PDF: PDFConfig{
			FontSize:     10,
			MarginTop:    2.0,
			MarginBottom: 2.0,
			MarginLeft:   2.0,
			MarginRight:  2.0,
			Title:        "RICEVUTA",
		},
		Logging: LoggingConfig{Level: types.LogLevelDebug},
	}
}
