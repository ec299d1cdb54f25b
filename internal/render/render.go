// Package render composes the outbound follow-up copy. The engine only
// depends on the renderer contract; this default keeps the daemon usable
// without the external catalog composer.
package render

import (
	"fmt"

	"github.com/techaura/aurabot/internal/domain"
	"github.com/techaura/aurabot/internal/engine"
)

// Catalog renders deterministic follow-up copy per stage and urgency.
// Identical session state always renders identical text, which is what
// lets the dedup guard suppress repeat sends.
type Catalog struct {
	ShopName string
}

// NewCatalog creates the default renderer.
func NewCatalog(shopName string) *Catalog {
	if shopName == "" {
		shopName = "TechAura"
	}
	return &Catalog{ShopName: shopName}
}

var _ engine.Renderer = (*Catalog)(nil)

// Render produces the exact text for a follow-up at the given urgency.
func (c *Catalog) Render(sess *domain.Session, urgency engine.Urgency) (string, error) {
	greeting := fmt.Sprintf("¡Hola! Somos %s 🎵", c.ShopName)

	var body string
	switch sess.Stage {
	case domain.StagePricing:
		body = "Vimos que preguntaste por precios. Nuestras USB de música van desde 16GB hasta 128GB, con los géneros que tú elijas."
	case domain.StageCustomizing:
		body = "¿Ya decidiste qué géneros y artistas quieres en tu USB? Armamos tu lista personalizada sin costo extra."
	case domain.StageClosing:
		body = "Tu pedido está a un paso. Confírmanos y empezamos a grabar tu USB hoy mismo."
	case domain.StageInterested:
		body = "Tenemos USB con música, videos y películas, listas para grabar con tu selección."
	case domain.StageAbandoned, domain.StageInactive:
		body = "Hace un tiempo no hablamos. Seguimos teniendo tu USB personalizada disponible si te animas."
	default:
		body = "Tenemos USB personalizadas con la música que más te gusta, desde 16GB."
	}

	var closer string
	switch urgency {
	case engine.UrgencyHigh:
		closer = "Hoy tenemos cupo para grabar tu pedido de una vez. ¿Lo confirmamos?"
	case engine.UrgencyMedium:
		closer = "¿Te gustaría que te enviemos el catálogo actualizado?"
	default:
		closer = "Cualquier duda, aquí estamos para ayudarte."
	}

	return greeting + " " + body + " " + closer, nil
}
