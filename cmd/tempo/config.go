package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/settings"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := openSettings()
		if err != nil {
			return err
		}
		for _, key := range settings.Schema() {
			v, err := cfg.Get(key.Name)
			if err != nil {
				return err
			}
			fmt.Printf("%s = %v (%s)\n", key.Name, v, key.Type)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := openSettings()
		if err != nil {
			return err
		}
		v, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := openSettings()
		if err != nil {
			return err
		}
		value, err := parseSettingValue(args[0], args[1])
		if err != nil {
			return err
		}
		return cfg.Set(args[0], value)
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// parseSettingValue converts the CLI string to the key's declared type so
// the store's type check sees a properly typed value.
func parseSettingValue(key, raw string) (interface{}, error) {
	for _, k := range settings.Schema() {
		if k.Name != key {
			continue
		}
		switch k.Type {
		case settings.TypeInt:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%s expects an integer: %q", key, raw)
			}
			return n, nil
		case settings.TypeBool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%s expects true or false: %q", key, raw)
			}
			return b, nil
		default:
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", settings.ErrUnknownKey, key)
}
