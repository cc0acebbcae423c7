package badger

import (
	"encoding/binary"

	"github.com/poiesic/sibyl/core"
)

// Key prefixes for different data types
const (
	entityPrefix        = "gent"
	entityTokenPrefix   = "gtok"
	relationshipPrefix  = "grel"
	adjacencyPrefix     = "gadj"
	graphDocPrefix      = "gdoc"
	embeddingPrefix     = "vemb"
	vectorDocPrefix     = "vdoc"
	documentPrefix      = "doc"
	checkpointPrefix    = "ckpt"
	graphDocEntityTag   = 'e'
	graphDocRelationTag = 'r'
)

var pingKey = []byte("sibyl:ping")

// appendID appends a BigEndian ID so that lexicographic order matches numeric order.
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// idSuffix decodes the trailing 8 byte ID of a composite key.
func idSuffix(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return appendID([]byte(entityPrefix+":"), id)
}

// makeEntityTokenKey generates a composite key for the name token index.
// Format: prefix:token\x00entityID
func makeEntityTokenKey(token string, id core.ID) []byte {
	buf := append(makePartialEntityTokenKey(token), 0)
	return appendID(buf, id)
}

// makePartialEntityTokenKey generates a partial key for token lookups.
// Format: prefix:token
func makePartialEntityTokenKey(token string) []byte {
	return []byte(entityTokenPrefix + ":" + token)
}

// makeRelationshipKey generates a key for a relationship by ID.
func makeRelationshipKey(id core.ID) []byte {
	return appendID([]byte(relationshipPrefix+":"), id)
}

// makeAdjacencyKey generates a composite key linking an entity to a relationship.
// Format: prefix:entityID:relationshipID
func makeAdjacencyKey(entityID, relID core.ID) []byte {
	buf := appendID([]byte(adjacencyPrefix+":"), entityID)
	return appendID(buf, relID)
}

// makePartialAdjacencyKey generates a partial key for an entity's relationships.
func makePartialAdjacencyKey(entityID core.ID) []byte {
	return appendID([]byte(adjacencyPrefix+":"), entityID)
}

// makeGraphDocKey generates a key tagging a graph row with its document.
// Format: prefix:docID\x00tag id
func makeGraphDocKey(doc core.DocumentID, tag byte, id core.ID) []byte {
	buf := append(makePartialGraphDocKey(doc), tag)
	return appendID(buf, id)
}

// makePartialGraphDocKey generates a partial key for a document's graph rows.
func makePartialGraphDocKey(doc core.DocumentID) []byte {
	return append([]byte(graphDocPrefix+":"+string(doc)), 0)
}

// makeEmbeddingKey generates a key for an embedding by ID.
func makeEmbeddingKey(id core.ID) []byte {
	return appendID([]byte(embeddingPrefix+":"), id)
}

// makeVectorDocKey generates a key tagging an embedding with its document.
func makeVectorDocKey(doc core.DocumentID, id core.ID) []byte {
	return appendID(makePartialVectorDocKey(doc), id)
}

// makePartialVectorDocKey generates a partial key for a document's embeddings.
func makePartialVectorDocKey(doc core.DocumentID) []byte {
	return append([]byte(vectorDocPrefix+":"+string(doc)), 0)
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.DocumentID) []byte {
	return []byte(documentPrefix + ":" + string(id))
}

// makeCheckpointKey generates a key for a processor's checkpoint.
func makeCheckpointKey(processor string) []byte {
	return []byte(checkpointPrefix + ":" + processor)
}
