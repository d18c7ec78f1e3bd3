package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/cmd/memctl/logger"
	"github.com/joshuapare/memkit/pagetable"
	"github.com/joshuapare/memkit/phys"
)

var (
	mapPerm     string
	mapLevel    int
	mapIdentity bool
)

func init() {
	m := newMapCmd()
	m.Flags().StringVar(&mapPerm, "perm", "rw", "Permissions: any of r, w, x plus u (user) and g (global)")
	m.Flags().IntVar(&mapLevel, "level", 0, "Leaf level: 0 = 4 KiB, 1 = 2 MiB, 2 = 1 GiB")
	m.Flags().BoolVar(&mapIdentity, "identity", false, "Identity-map every page of [vaddr, paddr) instead")
	rootCmd.AddCommand(m, newTranslateCmd(), newUnmapCmd(), newWalkCmd())
}

func newMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map <image> <vaddr> <paddr>",
		Short: "Map a virtual page to a physical address",
		Long: `The map command installs a leaf entry in the image's Sv39 page table,
creating the root and any intermediate tables from the frame pool.

Example:
  memctl map ram.img 0x40000000 0x80200000 --perm rw
  memctl map ram.img 0x80000000 0x80800000 --identity --perm rwx`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(cmd.Context(), args)
		},
	}
}

func newTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate <image> <vaddr>",
		Short: "Translate a virtual address through the page table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), args)
		},
	}
}

func newUnmapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmap <image>",
		Short: "Free every intermediate page table under the root",
		Long: `The unmap command frees the level-1 and level-0 tables of the page table
and clears the root. Mapped frames and the root table itself are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnmap(cmd.Context(), args)
		},
	}
}

func newWalkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "walk <image>",
		Short: "List every mapping in the page table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(cmd.Context(), args)
		},
	}
}

// parsePerm converts a permission string such as "rwx" or "urw" to entry bits.
func parsePerm(s string) (pagetable.Entry, error) {
	var bits pagetable.Entry
	for _, c := range s {
		switch c {
		case 'r':
			bits |= pagetable.Read
		case 'w':
			bits |= pagetable.Write
		case 'x':
			bits |= pagetable.Execute
		case 'u':
			bits |= pagetable.User
		case 'g':
			bits |= pagetable.Global
		default:
			return 0, fmt.Errorf("invalid permission %q in %q", c, s)
		}
	}
	if !bits.IsLeaf() {
		return 0, fmt.Errorf("permissions %q need at least one of r, w or x", s)
	}
	return bits, nil
}

// root returns the page table root recorded in the header, allocating one
// when create is set and there is none yet.
func (s *session) root(create bool) (phys.Addr, error) {
	hdr := s.img.Header()
	if root := hdr.RootTable(); root != phys.Null {
		return root, nil
	}
	if !create {
		return phys.Null, errors.New("image has no page table")
	}
	root, err := s.sys.Pages.AllocRoot()
	if err != nil {
		return phys.Null, err
	}
	hdr.SetRootTable(root)
	logger.Info("page table root created", "root", root.String())
	return root, nil
}

func runMap(ctx context.Context, args []string) error {
	va, err := parseAddr("virtual address", args[1])
	if err != nil {
		return err
	}
	pa, err := parseAddr("physical address", args[2])
	if err != nil {
		return err
	}
	bits, err := parsePerm(mapPerm)
	if err != nil {
		return err
	}
	if mapLevel < 0 || mapLevel > pagetable.TopLevel {
		return fmt.Errorf("invalid level %d", mapLevel)
	}

	return withSession(ctx, args[0], true, func(s *session) error {
		root, err := s.root(true)
		if err != nil {
			return err
		}
		if mapIdentity {
			if perr := guard(func() {
				err = s.sys.Pages.IdentityMap(root, phys.Addr(va), phys.Addr(pa), bits)
			}); perr != nil {
				err = perr
			}
			if err != nil {
				return fmt.Errorf("failed to identity map: %w", err)
			}
			logger.Info("identity mapped", "start", phys.Addr(va).String(), "end", phys.Addr(pa).String())
			printVerbose("Identity mapped %s-%s\n", phys.Addr(va), phys.Addr(pa))
			return nil
		}
		if perr := guard(func() {
			err = s.sys.Pages.Map(root, pagetable.VirtAddr(va), phys.Addr(pa), bits, mapLevel)
		}); perr != nil {
			err = perr
		}
		if err != nil {
			return fmt.Errorf("failed to map %#x: %w", va, err)
		}
		logger.Info("mapped", "vaddr", fmt.Sprintf("%#x", va), "paddr", phys.Addr(pa).String(), "level", mapLevel)
		printVerbose("Mapped %#x -> %s\n", va, phys.Addr(pa))
		return nil
	})
}

func runTranslate(ctx context.Context, args []string) error {
	va, err := parseAddr("virtual address", args[1])
	if err != nil {
		return err
	}
	return withSession(ctx, args[0], false, func(s *session) error {
		root, err := s.root(false)
		if err != nil {
			return err
		}
		pa, err := s.sys.Pages.VirtToPhys(root, pagetable.VirtAddr(va))
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(map[string]string{"vaddr": fmt.Sprintf("%#x", va), "paddr": pa.String()})
		}
		printInfo("%s\n", pa)
		return nil
	})
}

func runUnmap(ctx context.Context, args []string) error {
	return withSession(ctx, args[0], true, func(s *session) error {
		root, err := s.root(false)
		if err != nil {
			return err
		}
		freed := s.sys.Pages.Tables(root)
		s.sys.Pages.Unmap(root)
		logger.Info("unmapped", "root", root.String(), "tables_freed", freed)
		printVerbose("Freed %d table(s)\n", freed)
		return nil
	})
}

// Mapping is the JSON form of one page table leaf.
type Mapping struct {
	Virt  string `json:"vaddr"`
	Phys  string `json:"paddr"`
	Size  uint64 `json:"size"`
	Flags string `json:"flags"`
}

func runWalk(ctx context.Context, args []string) error {
	return withSession(ctx, args[0], false, func(s *session) error {
		root, err := s.root(false)
		if err != nil {
			return err
		}
		var out []Mapping
		s.sys.Pages.Walk(root, func(m pagetable.Mapping) {
			out = append(out, Mapping{
				Virt:  fmt.Sprintf("%#x", uint64(m.Virt)),
				Phys:  m.Phys.String(),
				Size:  m.Size(),
				Flags: m.Flags.String(),
			})
		})
		if jsonOut {
			return printJSON(out)
		}
		for _, m := range out {
			printInfo("%18s -> %-12s %8d %s\n", m.Virt, m.Phys, m.Size, m.Flags)
		}
		printInfo("%d mapping(s) in %d table(s)\n", len(out), s.sys.Pages.Tables(root))
		return nil
	})
}
