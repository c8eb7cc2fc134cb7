// Package autoload initializes the global logger from the LOG_* environment
// on blank import.
package autoload

import (
	"github.com/kelseyhightower/envconfig"

	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
)

func init() {
	var conf logx.Config
	if err := envconfig.Process("LOG", &conf); err != nil {
		logx.Init()
		return
	}
	logx.Init(conf)
}
