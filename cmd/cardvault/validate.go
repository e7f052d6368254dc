package main

import (
	"fmt"

	"github.com/jonanatree/cardvault/internal/cardgen"
	"github.com/jonanatree/cardvault/internal/cardrules"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var networkName string
	cmd := &cobra.Command{
		Use:   "validate NUMBER",
		Short: "Check a card number's length, digits, checksum, prefix and blacklist status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var network *cardgen.Network
			if networkName != "" {
				n, ok := cardgen.ParseNetwork(networkName)
				if !ok {
					return &cardgen.UnknownNetworkError{Name: networkName}
				}
				network = &n
			}

			number := cardgen.NormalizePAN(args[0])
			v := cardrules.NewValidator(cardrules.DefaultRules(), nil)
			if err := v.CheckNumber(number, network); err != nil {
				reason, _ := cardrules.ReasonOf(err)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", reason, err)
				return fmt.Errorf("card number ending %s rejected", cardgen.Mask(number))
			}

			detected, _ := cardgen.DetectNetwork(number)
			fmt.Fprintf(cmd.OutOrStdout(), "ok (%s)\n", detected)
			return nil
		},
	}
	cmd.Flags().StringVarP(&networkName, "network", "n", "", "expected network; checks the number prefix")
	return cmd
}
