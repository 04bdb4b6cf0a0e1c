package icons

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"shikagraph/icons"
)

type ListResponse struct {
	Icons         []icons.Descriptor `json:"icons"`
	UsingFallback bool               `json:"usingFallback"`
}

// HandleList returns the catalog, or one category with ?category=. An
// unknown category yields an empty list.
func HandleList(catalog *icons.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var list []icons.Descriptor
		if c := r.URL.Query().Get("category"); c != "" {
			list = catalog.ByCategory(icons.Category(c))
		} else {
			list = catalog.All()
		}
		if list == nil {
			list = []icons.Descriptor{}
		}
		render.JSON(w, r, ListResponse{Icons: list, UsingFallback: catalog.UsingFallback()})
	}
}

func HandleGet(catalog *icons.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		icon, ok := catalog.ByID(chi.URLParam(r, "id"))
		if !ok {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Icon not found"})
			return
		}
		render.JSON(w, r, icon)
	}
}

func HandleCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, icons.Categories)
	}
}
