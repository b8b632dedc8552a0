package commands

import (
	"github.com/lumennet/firefly/src/firefly"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a firefly node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runFirefly,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runFirefly(cmd *cobra.Command, args []string) error {
	engine := firefly.NewFirefly(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Name of this node in the group roster")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for beacons")
	cmd.Flags().StringP("broadcast", "b", _config.BroadcastAddr, "Broadcast IP:Port for beacons")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")

	// Protocol
	cmd.Flags().Uint16("group", _config.Group, "Group identifier carried in beacons")
	cmd.Flags().Duration("sync-period", _config.SyncPeriod, "Nominal flash period")
	cmd.Flags().Duration("flash-duration", _config.FlashDuration, "How long the indicator stays lit")
	cmd.Flags().Duration("transmission-unit", _config.TransmissionUnit, "Channel time of one beacon")
	cmd.Flags().Duration("wait-ceiling", _config.WaitCeiling, "Cap on a single backoff wait")
	cmd.Flags().Bool("snap", _config.Snap, "Use the reset-to-zero correction scheme")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.SetDataDir(_config.DataDir)

	_config.Logger().WithFields(logrus.Fields{
		"DataDir":          _config.DataDir,
		"BindAddr":         _config.BindAddr,
		"BroadcastAddr":    _config.BroadcastAddr,
		"ServiceAddr":      _config.ServiceAddr,
		"NoService":        _config.NoService,
		"LogLevel":         _config.LogLevel,
		"Moniker":          _config.Moniker,
		"Group":            _config.Group,
		"SyncPeriod":       _config.SyncPeriod,
		"FlashDuration":    _config.FlashDuration,
		"TransmissionUnit": _config.TransmissionUnit,
		"WaitCeiling":      _config.WaitCeiling,
		"Snap":             _config.Snap,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/firefly.toml (.json, .yaml also work)
	viper.SetConfigName("firefly")        // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir)  // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
