package cache

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// KeyVersion namespaces every edge key. Bumping it makes all old
// entries unaddressable, which is how a full invalidation is done.
const KeyVersion = "v2"

// EdgeKey is {version}/profile/{type}/{normalizedIdentifier}.
func EdgeKey(identifier string, idType models.IdentifierType) string {
	return fmt.Sprintf("%s/profile/%s/%s", KeyVersion, idType, Normalize(identifier, idType))
}

// RegionalKey is profile:{type}:{normalizedIdentifier}.
func RegionalKey(identifier string, idType models.IdentifierType) string {
	return fmt.Sprintf("profile:%s:%s", idType, Normalize(identifier, idType))
}

// RegionalPrefix is the List prefix covering every profile entry of one
// identifier type.
func RegionalPrefix(idType models.IdentifierType) string {
	return fmt.Sprintf("profile:%s:", idType)
}

// Normalize canonicalizes an identifier for use as a key component.
func Normalize(identifier string, idType models.IdentifierType) string {
	if idType == models.IdentifierTypeEmail {
		return normalizers.Email(identifier)
	}
	return normalizers.Phone(identifier)
}
