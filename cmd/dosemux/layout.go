// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ManuGH/dosemux/internal/layout"
	"github.com/spf13/cobra"
)

// selection picks components by explicit IDs or by a rectangle.
type selection struct {
	ids  string
	area string
}

func (s *selection) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.ids, "ids", "", "comma separated component IDs")
	cmd.Flags().StringVar(&s.area, "area", "", "select components fully inside x1,y1,x2,y2")
}

func (s *selection) resolve(l *layout.Layout) ([]int, error) {
	switch {
	case s.ids != "" && s.area != "":
		return nil, errors.New("--ids and --area are mutually exclusive")
	case s.area != "":
		r, err := intList(s.area)
		if err != nil {
			return nil, err
		}
		if len(r) != 4 {
			return nil, fmt.Errorf("--area needs x1,y1,x2,y2, got %q", s.area)
		}
		return l.SelectInArea(r[0], r[1], r[2], r[3]), nil
	case s.ids != "":
		return intList(s.ids)
	default:
		return nil, errors.New("select components with --ids or --area")
	}
}

// editLayout loads path, applies fn and saves the result atomically.
func editLayout(path string, fn func(*layout.Layout) error) error {
	l, err := layout.Load(path)
	if err != nil {
		return err
	}
	if err := fn(l); err != nil {
		return err
	}
	return l.Save(path)
}

func newLayoutCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Edit build plate layouts of components and exposure groups",
	}
	cmd.AddCommand(
		newLayoutNewCmd(g),
		newLayoutShowCmd(),
		newLayoutAddCmd(),
		newLayoutTileCmd(),
		newLayoutDeleteCmd(),
		newLayoutMoveCmd(),
		newLayoutAlignCmd(),
		newLayoutGroupCmd(),
	)
	return cmd
}

func newLayoutNewCmd(g *globalOptions) *cobra.Command {
	var width, height int
	var force bool
	cmd := &cobra.Command{
		Use:   "new <layout.json>",
		Short: "Create an empty layout with a default group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd, true)
			if err != nil {
				return err
			}
			if _, err := os.Stat(args[0]); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", args[0])
			}
			if !cmd.Flags().Changed("width") {
				width = cfg.Render.CanvasWidth
			}
			if !cmd.Flags().Changed("height") {
				height = cfg.Render.CanvasHeight
			}
			l := layout.New(width, height)
			if err := l.NewGroup("default", "", layout.DefaultExposure()); err != nil {
				return err
			}
			if err := l.Save(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%dx%d)\n", args[0], l.Width, l.Height)
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", layout.DefaultWidth, "canvas width in pixels")
	cmd.Flags().IntVar(&height, "height", layout.DefaultHeight, "canvas height in pixels")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newLayoutShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <layout.json>",
		Short: "List groups and components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := layout.Load(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "canvas %dx%d\n", l.Width, l.Height)
			for _, grp := range l.Groups {
				_, _ = fmt.Fprintf(w, "group %s %s %s %g (%d components)\n",
					grp.Name, grp.Color, grp.Exposure.Mode, grp.Exposure.Value, len(l.Members(grp.Name)))
			}
			for _, c := range l.Components {
				_, _ = fmt.Fprintf(w, "%d: %s\n", c.ID, layout.Describe(c))
			}
			return nil
		},
	}
}

func newLayoutAddCmd() *cobra.Command {
	var group string
	var x, y, width, height int
	cmd := &cobra.Command{
		Use:   "add <layout.json>",
		Short: "Add a component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error {
				id, err := l.AddComponent(group, x, y, width, height)
				if err != nil {
					return err
				}
				c, _ := l.Component(id)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", id, layout.Describe(c))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "default", "group of the component")
	cmd.Flags().IntVar(&x, "x", 0, "left edge")
	cmd.Flags().IntVar(&y, "y", 0, "top edge")
	cmd.Flags().IntVar(&width, "width", layout.DefaultComponentWidth, "width in pixels")
	cmd.Flags().IntVar(&height, "height", layout.DefaultComponentHeight, "height in pixels")
	return cmd
}

func newLayoutTileCmd() *cobra.Command {
	var o layout.TileOptions
	cmd := &cobra.Command{
		Use:   "tile <layout.json>",
		Short: "Add a grid of components, clipped to the canvas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error {
				ids, err := l.Tile(o)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %d components\n", len(ids))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&o.Group, "group", "default", "group of the new components")
	cmd.Flags().IntVar(&o.X, "x", 0, "grid origin x")
	cmd.Flags().IntVar(&o.Y, "y", 0, "grid origin y")
	cmd.Flags().IntVar(&o.Rows, "rows", 1, "grid rows")
	cmd.Flags().IntVar(&o.Cols, "cols", 1, "grid columns")
	cmd.Flags().IntVar(&o.Width, "width", layout.DefaultComponentWidth, "component width")
	cmd.Flags().IntVar(&o.Height, "height", layout.DefaultComponentHeight, "component height")
	cmd.Flags().IntVar(&o.GapX, "gap-x", 0, "horizontal gap between components")
	cmd.Flags().IntVar(&o.GapY, "gap-y", 0, "vertical gap between components")
	return cmd
}

func newLayoutDeleteCmd() *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "delete <layout.json>",
		Short: "Delete components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error {
				ids, err := sel.resolve(l)
				if err != nil {
					return err
				}
				return l.DeleteComponents(ids)
			})
		},
	}
	sel.bind(cmd)
	return cmd
}

func newLayoutMoveCmd() *cobra.Command {
	var sel selection
	var x, y int
	cmd := &cobra.Command{
		Use:   "move <layout.json>",
		Short: "Set the x and/or y position of components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setX, setY := cmd.Flags().Changed("x"), cmd.Flags().Changed("y")
			if !setX && !setY {
				return errors.New("nothing to do: pass --x and/or --y")
			}
			return editLayout(args[0], func(l *layout.Layout) error {
				ids, err := sel.resolve(l)
				if err != nil {
					return err
				}
				if setX {
					if err := l.SetX(ids, x); err != nil {
						return err
					}
				}
				if setY {
					return l.SetY(ids, y)
				}
				return nil
			})
		},
	}
	sel.bind(cmd)
	cmd.Flags().IntVar(&x, "x", 0, "new left edge")
	cmd.Flags().IntVar(&y, "y", 0, "new top edge")
	return cmd
}

func newLayoutAlignCmd() *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:       "align <layout.json> left|right|top|bottom",
		Short:     "Align components to the outermost edge among them",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"left", "right", "top", "bottom"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error {
				ids, err := sel.resolve(l)
				if err != nil {
					return err
				}
				switch strings.ToLower(args[1]) {
				case "left":
					return l.AlignLeft(ids)
				case "right":
					return l.AlignRight(ids)
				case "top":
					return l.AlignTop(ids)
				case "bottom":
					return l.AlignBottom(ids)
				default:
					return fmt.Errorf("unknown edge %q (left, right, top, bottom)", args[1])
				}
			})
		},
	}
	sel.bind(cmd)
	return cmd
}

func newLayoutGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage exposure groups",
	}

	var color, mode string
	var value float64
	add := &cobra.Command{
		Use:   "add <layout.json> <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error {
				return l.NewGroup(args[1], color, layout.Exposure{Mode: mode, Value: value})
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "display color #rrggbb (default: next palette color)")
	add.Flags().StringVar(&mode, "mode", layout.ModeScale, "exposure mode: absolute (ms) or scale (x base exposure)")
	add.Flags().Float64Var(&value, "value", 1, "exposure value")

	del := &cobra.Command{
		Use:   "delete <layout.json> <name>",
		Short: "Delete a group and its components",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error { return l.DeleteGroup(args[1]) })
		},
	}

	rename := &cobra.Command{
		Use:   "rename <layout.json> <from> <to>",
		Short: "Rename a group",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error { return l.RenameGroup(args[1], args[2]) })
		},
	}

	setColor := &cobra.Command{
		Use:   "color <layout.json> <name> <#rrggbb>",
		Short: "Set a group's display color",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error { return l.SetGroupColor(args[1], args[2]) })
		},
	}

	var expMode string
	exposure := &cobra.Command{
		Use:   "exposure <layout.json> <name> <value>",
		Short: "Set a group's exposure",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			var v float64
			if _, err := fmt.Sscanf(args[2], "%g", &v); err != nil {
				return fmt.Errorf("invalid exposure value %q", args[2])
			}
			return editLayout(args[0], func(l *layout.Layout) error {
				return l.SetGroupExposure(args[1], layout.Exposure{Mode: expMode, Value: v})
			})
		},
	}
	exposure.Flags().StringVar(&expMode, "mode", layout.ModeScale, "exposure mode: absolute or scale")

	var sel selection
	assign := &cobra.Command{
		Use:   "assign <layout.json> <name>",
		Short: "Move components to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return editLayout(args[0], func(l *layout.Layout) error {
				ids, err := sel.resolve(l)
				if err != nil {
					return err
				}
				return l.ChangeGroup(ids, args[1])
			})
		},
	}
	sel.bind(assign)

	cmd.AddCommand(add, del, rename, setColor, exposure, assign)
	return cmd
}
