/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/aegisalert/aegis/client/alerts"
	"github.com/aegisalert/aegis/client/auth"
	"github.com/aegisalert/aegis/client/geo"
	"github.com/aegisalert/aegis/client/logger"
	"github.com/aegisalert/aegis/client/realtime"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/client/session"
	"github.com/aegisalert/aegis/colors"
	devConfig "github.com/aegisalert/aegis/dev/config"
	"github.com/aegisalert/aegis/shared"
	"github.com/aegisalert/aegis/version"
	"github.com/go-playground/validator"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	config  *viper.Viper

	isDevEnv  bool
	isTestEnv bool

	warningLabel = colors.Yellow("Warning:")
)

// Stubbed out in tests, so commands run against in-memory fakes instead of a
// real broker & the user's home directory.
var (
	newChannel = func(conf shared.RealtimeConfig, logg *zap.SugaredLogger) realtime.Channel {
		return realtime.NewPushChannel(realtime.NewMQTTTransport(conf), logg)
	}
	sessionDir = session.DefaultDir
)

// rootCmd represents the base command when called without any subcommands.
// Initialized at declaration so it exists before init funcs in other files
// of this package call rootCmd.AddCommand.
var rootCmd = createRootCmd()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = fmt.Sprintf("v%s", version.Version)
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "aegis",
		Short: `aegis is the terminal client for the emergency alert platform.

It raises alerts from personal safety devices, lets responders accept and
track them through to completion, and runs a foreground agent that stays in
sync with the backend over the push channel.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aegis.yaml)")
	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")
	cmd.PersistentFlags().BoolVarP(&isTestEnv, "test", "", false, "run in test mode")

	return cmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config = viper.New()

	if cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(cfgFile)
	} else {
		configName, configDir, err := defaultCfgNameAndDir()
		cobra.CheckErr(err)

		// If config file is not found, create one using the default content
		configFilePath := filepath.Join(configDir, configName)
		if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
			content := defaultConfigValue()
			if isDevEnv {
				content = devConfig.CLIENT_YML
			}

			err = ioutil.WriteFile(configFilePath, []byte(content), 0600)
			cobra.CheckErr(err)
		}

		// Search config in home directory with name ".aegis" (without extension).
		config.AddConfigPath(configDir)
		config.SetConfigType("yaml")
		config.SetConfigName(configName)
	}

	// The env vars override whatever is in the config file, so a deployment
	// can point the same config at another backend without editing it.
	config.BindEnv("api.baseUrl", "AEGIS_API_URL")
	config.BindEnv("realtime.brokerUrl", "AEGIS_BROKER_URL")

	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", config.ConfigFileUsed())
	}
}

func defaultCfgNameAndDir() (configName string, configDir string, err error) {
	configName = ".aegis.yaml"

	// Use home directory for production
	configDir, err = os.UserHomeDir()
	if err != nil {
		return "", "", err
	}

	if isDevEnv || isTestEnv {
		configName = ".aegis.dev.yaml"
		configDir, err = os.Getwd()
		if err != nil {
			return "", "", err
		}

		if isTestEnv {
			configName = ".aegis.yaml"
			configDir = filepath.Join(configDir, "test-fixtures")
		}
	}

	return configName, configDir, err
}

// defaultConfigValue returns the default content for .aegis.yaml
func defaultConfigValue() string {
	return `api:
  baseUrl: "http://localhost:5000"
  timeoutSeconds: 15

realtime:
  brokerUrl: "tcp://localhost:1883"

# Static location used to stamp alerts on hosts without a positioning
# source. 0/0 means "not configured" - raising an alert will fail until
# a real position is set.
location:
  latitude: 0
  longitude: 0

agent:
  resyncSchedule: "1m"
  timeZone: "America/Toronto"
`
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// clientApp bundles everything a command needs, wired from config.
type clientApp struct {
	config  *shared.ClientConfig
	logg    *zap.SugaredLogger
	store   *session.Store
	api     *restapi.Client
	channel realtime.Channel
	flow    *auth.Flow
}

func newClientApp() (*clientApp, error) {
	conf, err := clientConfig()
	if err != nil {
		return nil, err
	}

	logg := logger.NewLogger()
	if isTestEnv {
		logg = logger.NewNopLogger()
	}

	dir, err := sessionDir()
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(dir)
	if err != nil {
		return nil, err
	}

	api := restapi.NewClient(conf.API.BaseURL, store)
	if conf.API.TimeoutSeconds > 0 {
		api.SetTimeout(time.Duration(conf.API.TimeoutSeconds) * time.Second)
	}

	channel := newChannel(conf.Realtime, logg)

	return &clientApp{
		config:  conf,
		logg:    logg,
		store:   store,
		api:     api,
		channel: channel,
		flow:    auth.NewFlow(store, api, channel, logg),
	}, nil
}

func (app *clientApp) alertService() *alerts.Service {
	provider := geo.StaticProvider{
		Latitude:  app.config.Location.Latitude,
		Longitude: app.config.Location.Longitude,
	}

	return alerts.NewService(app.api, app.channel, geo.NewResolver(provider, app.config.Location), app.logg)
}

// requireSession loads the saved credential for one-shot commands, without
// touching the push channel.
func (app *clientApp) requireSession() (*session.Session, error) {
	sess, err := app.store.Load()
	if err != nil {
		return nil, err
	}

	if sess == nil {
		return nil, formattedError("you are not signed in - run 'aegis login' first")
	}

	return sess, nil
}

func clientConfig() (*shared.ClientConfig, error) {
	clientConfig := &shared.ClientConfig{}
	if err := config.Unmarshal(clientConfig); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(clientConfig); err != nil {
		return nil, formattedError("invalid config in %v: %v", config.ConfigFileUsed(), err)
	}

	return clientConfig, nil
}

func commandContext() context.Context {
	return context.Background()
}

func formattedError(format string, a ...interface{}) error {
	return fmt.Errorf(colors.Red(format), a...)
}
