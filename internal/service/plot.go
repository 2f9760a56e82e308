package service

import (
	"fmt"
	"log"

	"github.com/atlasmap-sc/embedview/internal/cache"
	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/data/dataset"
	"github.com/atlasmap-sc/embedview/internal/render"
)

// Plot renders the scatter plot as PNG with the same colors and
// highlighting as Figure. Categories missing from filter are not drawn.
// Zero width or height falls back to the configured plot size.
func (s *ViewService) Plot(method Method, sel Selection, filter []string, width, height int) ([]byte, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	if width == 0 {
		width = s.width
	}
	if height == 0 {
		height = s.height
	}

	cacheKey := cache.PlotKey(s.cacheID(sess), string(method), sel.String(), filter, width, height)
	if data, ok := s.cache.GetPlot(cacheKey); ok {
		return data, nil
	}

	visible, err := visibleSet(filter)
	if err != nil {
		return nil, err
	}

	var data []byte
	if sess.Dataset.Len() == 0 {
		data, err = s.renderer.CreateEmpty(width, height)
	} else {
		data, err = s.renderer.RenderScatter(s.panels(sess, method, sel, visible), width, height)
	}
	if err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}

	if err := s.cache.SetPlot(cacheKey, data); err != nil {
		log.Printf("  [%s] Plot not cached: %v", s.datasetID, err)
	}
	return data, nil
}

func (s *ViewService) panels(sess *Session, method Method, sel Selection, visible map[category.Label]bool) []render.Panel {
	if method == MethodBoth {
		return []render.Panel{
			s.panel(sess, MethodProposed, MethodProposed.Title(), sel, visible),
			s.panel(sess, MethodOriginal, MethodOriginal.Title(), sel, visible),
		}
	}
	return []render.Panel{s.panel(sess, method, singleTitle(method, sess.Dataset.Name), sel, visible)}
}

func (s *ViewService) panel(sess *Session, method Method, title string, sel Selection, visible map[category.Label]bool) render.Panel {
	ds := sess.Dataset
	coords := ds.Proposed
	if method == MethodOriginal {
		coords = ds.Original
	}

	p := render.Panel{Title: title}
	for _, l := range sess.Categories.Set {
		idx := sess.Indices[l]
		if len(idx) == 0 || !isVisible(visible, l) {
			continue
		}
		points := make([]dataset.Point, len(idx))
		for j, i := range idx {
			points[j] = coords[i]
		}
		col, _ := sess.Categories.Color(l)
		p.Series = append(p.Series, render.Series{
			Points:      points,
			Color:       col,
			Highlighted: sel.Highlights(l),
		})
	}
	return p
}
