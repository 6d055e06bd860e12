package config

import (
	"github.com/spf13/viper"
)

// ProcessorConfig holds the payment-processor settings shared by the
// signature verifier and the deposit API. It is passed to those components
// explicitly rather than read from ambient process state.
type ProcessorConfig struct {
	Secret          string
	CheckoutBaseURL string
	SignatureHeader string
}

// NotifierConfig configures the Redis queue consumed by the external email
// worker after a deposit is credited.
type NotifierConfig struct {
	Queue string
}

func LoadProcessorConfig() ProcessorConfig {
	viper.SetDefault("processor.checkout_base_url", "https://pay.coingate.example/checkout")
	viper.SetDefault("processor.signature_header", "X-Processor-Signature")

	return ProcessorConfig{
		Secret:          viper.GetString("processor.secret"),
		CheckoutBaseURL: viper.GetString("processor.checkout_base_url"),
		SignatureHeader: viper.GetString("processor.signature_header"),
	}
}

func LoadNotifierConfig() NotifierConfig {
	viper.SetDefault("notifier.queue", "deposit_notifications")

	return NotifierConfig{
		Queue: viper.GetString("notifier.queue"),
	}
}
