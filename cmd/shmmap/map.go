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
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/shmmap/pkg/shm"
)

type mapOptions struct {
	size   sizeValue
	write  string
	offset int
	dump   int
	sync   bool
}

func newMapCmd() *cobra.Command {
	o := &mapOptions{size: -1}
	cmd := &cobra.Command{
		Use:   "map <location>",
		Short: "Map a location, optionally write to it, and print what was mapped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.Var(&o.size, "size", "bytes to map, growing the store if needed (0 maps the current size)")
	f.StringVar(&o.write, "write", "", "string to write into the region")
	f.IntVar(&o.offset, "offset", 0, "offset for --write and --dump")
	f.IntVar(&o.dump, "dump", 0, "number of bytes to print as hex")
	f.BoolVar(&o.sync, "sync", false, "flush the region to its store before exiting")
	return cmd
}

func runMap(cmd *cobra.Command, location string, o *mapOptions) error {
	r, err := shm.Map(location, int64(o.size))
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, describe(r))

	data := r.Bytes()
	if o.offset < 0 || o.offset > len(data) {
		return fmt.Errorf("offset %d outside region of %d bytes", o.offset, len(data))
	}
	if o.write != "" {
		n := copy(data[o.offset:], o.write)
		if n < len(o.write) {
			return errors.New("write does not fit in the region")
		}
		fmt.Fprintf(out, "wrote %d bytes at offset %d\n", n, o.offset)
	}
	if o.sync {
		if err := r.Sync(); err != nil {
			return err
		}
	}
	if o.dump > 0 {
		end := min(o.offset+o.dump, len(data))
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		d := hex.Dumper(buf)
		_, _ = d.Write(data[o.offset:end])
		_ = d.Close()
		_, _ = out.Write(buf.B)
	}
	return r.Close()
}
