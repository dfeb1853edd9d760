// Copyright 2025 Legion Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/sealedbid"
	"github.com/spf13/cobra"
)

func keygenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a sealed-bid auction keypair",
		Long: "Generate a fresh secp256k1 keypair for a sealed-bid auction. " +
			"The public key goes into the sale configuration; the private " +
			"key stays with the operator until results publication.",
		Run: func(cmd *cobra.Command, args []string) {
			priv, pub, err := sealedbid.GenerateKeypair()
			if err != nil {
				slog.Error("keypair generation failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("public key:  %s\n", pub.String())
			fmt.Printf("private key: %s\n", hex.EncodeToString(priv[:]))
		},
	}
	return cmd
}
