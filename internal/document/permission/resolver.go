package permission

import (
	"lexflow/internal/document/models"
	idmodels "lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
)

// Grants are the explicit grants one user holds on one document.
type Grants struct {
	Visible bool
	Usable  bool
}

// Resolve returns the user's level on doc. The checks run in a fixed order
// and the first match wins.
func Resolve(doc *models.Document, user *idmodels.User, g Grants) Level {
	if doc == nil || user == nil {
		return LevelNone
	}
	switch {
	case user.IsLawyer():
		return LevelLawyer
	case doc.IsOwner(user.ID):
		return LevelOwner
	case doc.IsAssignedTo(user.ID):
		return LevelUsability
	case doc.IsTemplate():
		return LevelUsability
	case g.Usable:
		return LevelUsability
	case g.Visible:
		return LevelViewOnly
	case doc.IsPublic:
		return LevelPublicAccess
	}
	return LevelNone
}

func CanView(doc *models.Document, user *idmodels.User, g Grants) bool {
	return Resolve(doc, user, g).CanView()
}

func CanUse(doc *models.Document, user *idmodels.User, g Grants) bool {
	return Resolve(doc, user, g).CanUse()
}

// GrantIndex holds one user's grants across many documents so lists can be
// resolved without a query per document.
type GrantIndex struct {
	visible map[id.DocumentID]struct{}
	usable  map[id.DocumentID]struct{}
}

// NewGrantIndex builds an index from the document IDs a user holds
// visibility and usability grants on.
func NewGrantIndex(visible, usable []id.DocumentID) GrantIndex {
	ix := GrantIndex{
		visible: make(map[id.DocumentID]struct{}, len(visible)),
		usable:  make(map[id.DocumentID]struct{}, len(usable)),
	}
	for _, d := range visible {
		ix.visible[d] = struct{}{}
	}
	for _, d := range usable {
		ix.usable[d] = struct{}{}
	}
	return ix
}

func (ix GrantIndex) For(docID id.DocumentID) Grants {
	_, v := ix.visible[docID]
	_, u := ix.usable[docID]
	return Grants{Visible: v, Usable: u}
}

// ResolveAll resolves every document against the same index.
func ResolveAll(docs []*models.Document, user *idmodels.User, ix GrantIndex) map[id.DocumentID]Level {
	out := make(map[id.DocumentID]Level, len(docs))
	for _, d := range docs {
		out[d.ID] = Resolve(d, user, ix.For(d.ID))
	}
	return out
}

// FilterViewable keeps the documents the user can view, preserving order.
func FilterViewable(docs []*models.Document, user *idmodels.User, ix GrantIndex) []*models.Document {
	out := make([]*models.Document, 0, len(docs))
	for _, d := range docs {
		if Resolve(d, user, ix.For(d.ID)).CanView() {
			out = append(out, d)
		}
	}
	return out
}
