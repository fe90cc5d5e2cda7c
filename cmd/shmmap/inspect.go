/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srediag/shmmap/pkg/shm"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <location>",
		Short: "Print the kind, size and first bytes of an existing store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shm.DebugRegionDetail(cmd.OutOrStdout(), args[0])
		},
	}
}

func newUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <name>",
		Short: "Remove a shared-memory segment; existing mappings stay valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if kind, n := shm.Classify(name); kind == shm.KindSharedMemory {
				name = n
			}
			if err := shm.UnlinkSegment(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unlinked %s\n", name)
			return nil
		},
	}
}
