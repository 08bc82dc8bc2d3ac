// Package options aggregates every configuration surface of the anchora
// server into one CLI options struct.
package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/anchora/internal/qa"
	cacheopts "github.com/kart-io/anchora/pkg/options/cache"
	httpopts "github.com/kart-io/anchora/pkg/options/http"
	llmopts "github.com/kart-io/anchora/pkg/options/llm"
	logopts "github.com/kart-io/anchora/pkg/options/logger"
	milvusopts "github.com/kart-io/anchora/pkg/options/milvus"
	qaopts "github.com/kart-io/anchora/pkg/options/qa"
)

// ServerOptions contains the full server configuration.
type ServerOptions struct {
	HTTP      *httpopts.Options        `json:"http" mapstructure:"http"`
	Log       *logopts.Options         `json:"log" mapstructure:"log"`
	QA        *qaopts.Options          `json:"qa" mapstructure:"qa"`
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	Chat      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	Cache     *cacheopts.Options       `json:"cache" mapstructure:"cache"`

	// StoreDriver selects the vector store backend: memory or milvus.
	StoreDriver string              `json:"store-driver" mapstructure:"store-driver"`
	Milvus      *milvusopts.Options `json:"milvus" mapstructure:"milvus"`
}

// NewServerOptions creates ServerOptions with defaults.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTP:        httpopts.NewOptions(),
		Log:         logopts.NewOptions(),
		QA:          qaopts.NewOptions(),
		Embedding:   llmopts.NewEmbeddingOptions(),
		Chat:        llmopts.NewChatOptions(),
		Cache:       cacheopts.NewOptions(),
		StoreDriver: qa.StoreDriverMemory,
		Milvus:      milvusopts.NewOptions(),
	}
}

// AddFlags adds all server flags to fs.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.QA.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
	o.Cache.AddFlags(fs)
	o.Milvus.AddFlags(fs)

	fs.StringVar(&o.StoreDriver, "store-driver", o.StoreDriver, "Vector store backend (memory, milvus).")
}

// Validate validates all option groups.
func (o *ServerOptions) Validate() error {
	var errs []error
	errs = append(errs, o.HTTP.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.QA.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)
	errs = append(errs, o.Cache.Validate()...)

	switch o.StoreDriver {
	case qa.StoreDriverMemory:
	case qa.StoreDriverMilvus:
		errs = append(errs, o.Milvus.Validate()...)
	default:
		errs = append(errs, fmt.Errorf("store-driver must be memory or milvus, got %q", o.StoreDriver))
	}

	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Complete fills in defaults derived from other options.
func (o *ServerOptions) Complete() error {
	if err := o.QA.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if err := o.Chat.Complete(); err != nil {
		return err
	}
	if err := o.Cache.Complete(); err != nil {
		return err
	}
	return nil
}

// Config converts the options into the server assembly config.
func (o *ServerOptions) Config() *qa.Config {
	return &qa.Config{
		HTTP:        o.HTTP,
		QA:          o.QA,
		Embedding:   o.Embedding,
		Chat:        o.Chat,
		Cache:       o.Cache,
		StoreDriver: o.StoreDriver,
		Milvus:      o.Milvus,
	}
}
