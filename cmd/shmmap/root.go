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
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/srediag/shmmap/pkg/shm"
)

const (
	rootShortDescription = "Map files and shared-memory segments into memory"
	rootLongDescription  = `shmmap maps a regular file or a shared-memory segment read/write and
shared. A location under /dev/shm/ with no further separator is a segment,
anything else is a file path created on demand. Sizes accept units such as
4096, 64KiB or 1MB; a size of 0 maps the store's current size.`
)

func newRootCmd() *cobra.Command {
	var logLevel int
	root := &cobra.Command{
		Use:           "shmmap",
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Flags().Changed("log-level") {
				shm.SetLogLevel(logLevel)
			}
		},
	}
	root.PersistentFlags().IntVar(&logLevel, "log-level", 3, "log level, 0 (trace) to 5 (silent)")
	root.AddCommand(
		newMapCmd(),
		newInspectCmd(),
		newUnlinkCmd(),
		newServeCmd(),
	)
	return root
}

// sizeValue is a pflag.Value holding a byte count written with or without
// units. Zero or negative means the store's current size.
type sizeValue int64

var _ pflag.Value = (*sizeValue)(nil)

func (s *sizeValue) String() string {
	if *s <= 0 {
		return "0"
	}
	return humanize.IBytes(uint64(*s))
}

func (s *sizeValue) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" || v == "0" || strings.HasPrefix(v, "-") {
		*s = -1
		return nil
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", v, err)
	}
	if n > 1<<62 {
		return fmt.Errorf("size %q too large", v)
	}
	*s = sizeValue(n)
	return nil
}

func (s *sizeValue) Type() string {
	return "size"
}

// parseRequest splits "location[:size]". The size is taken from the last
// colon only when it parses, so paths containing colons still work.
func parseRequest(arg string) (shm.Request, error) {
	if arg == "" {
		return shm.Request{}, shm.ErrInvalidLocation
	}
	req := shm.Request{Location: arg, Length: -1}
	i := strings.LastIndexByte(arg, ':')
	if i <= 0 || i == len(arg)-1 {
		return req, nil
	}
	var size sizeValue
	if err := size.Set(arg[i+1:]); err != nil {
		return req, nil
	}
	req.Location = arg[:i]
	req.Length = int64(size)
	return req, nil
}

func describe(r *shm.Region) string {
	grown := ""
	if r.Grown() {
		grown = " (grown)"
	} else if err := r.GrowErr(); err != nil {
		grown = fmt.Sprintf(" (growth failed: %v)", err)
	}
	return fmt.Sprintf("%s kind=%s id=%s size=%s%s",
		r.Location(), r.Kind(), r.ID(), humanize.IBytes(uint64(r.Len())), grown)
}
