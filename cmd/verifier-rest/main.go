/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"github.com/spf13/cobra"

	"github.com/xavi-pinsach/prova/cmd/verifier-rest/startcmd"
	"github.com/xavi-pinsach/prova/pkg/common/log"
)

var logger = log.New("prova/verifier-rest")

func main() {
	rootCmd := &cobra.Command{
		Use: "verifier-rest",
	}

	startCmd, err := startcmd.Cmd(&startcmd.HTTPServer{})
	if err != nil {
		logger.Fatalf(err.Error())
	}

	rootCmd.AddCommand(startCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run verifier-rest: %s", err)
	}
}
