// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package layout

import (
	"fmt"
	"strings"
)

// NewGroup appends a group. An empty color picks the next palette entry and
// a zero exposure uses DefaultExposure.
func (l *Layout) NewGroup(name, color string, exp Exposure) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrGroupNotFound)
	}
	if l.groupIndex(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrGroupExists, name)
	}
	if color == "" {
		color = palette[len(l.Groups)%len(palette)]
	}
	if !colorPattern.MatchString(color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	if exp == (Exposure{}) {
		exp = DefaultExposure()
	}
	if err := exp.Validate(); err != nil {
		return err
	}
	l.Groups = append(l.Groups, Group{Name: name, Color: strings.ToLower(color), Exposure: exp})
	return nil
}

// DeleteGroup removes a group and its components.
func (l *Layout) DeleteGroup(name string) error {
	i := l.groupIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	l.Groups = append(l.Groups[:i], l.Groups[i+1:]...)
	kept := l.Components[:0]
	for _, c := range l.Components {
		if c.Group != name {
			kept = append(kept, c)
		}
	}
	l.Components = kept
	return nil
}

// RenameGroup renames a group and moves its components along.
func (l *Layout) RenameGroup(from, to string) error {
	to = strings.TrimSpace(to)
	i := l.groupIndex(from)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, from)
	}
	if to == "" {
		return fmt.Errorf("%w: empty name", ErrGroupNotFound)
	}
	if from == to {
		return nil
	}
	if l.groupIndex(to) >= 0 {
		return fmt.Errorf("%w: %s", ErrGroupExists, to)
	}
	l.Groups[i].Name = to
	for j := range l.Components {
		if l.Components[j].Group == from {
			l.Components[j].Group = to
		}
	}
	return nil
}

// SetGroupColor changes a group's color.
func (l *Layout) SetGroupColor(name, color string) error {
	i := l.groupIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	if !colorPattern.MatchString(color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	l.Groups[i].Color = strings.ToLower(color)
	return nil
}

// SetGroupExposure changes a group's exposure.
func (l *Layout) SetGroupExposure(name string, exp Exposure) error {
	i := l.groupIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	if err := exp.Validate(); err != nil {
		return err
	}
	l.Groups[i].Exposure = exp
	return nil
}

// ChangeGroup moves the selected components to group.
func (l *Layout) ChangeGroup(ids []int, group string) error {
	if l.groupIndex(group) < 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	idx, err := l.indices(ids)
	if err != nil {
		return err
	}
	for _, i := range idx {
		l.Components[i].Group = group
	}
	return nil
}
