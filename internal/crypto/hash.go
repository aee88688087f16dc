package crypto

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// All hashes below are keccak256 over tightly packed values, the same layout
// abi.encodePacked produces: uint256 as 32 bytes, uint32 as 4 bytes, address
// as 20 bytes, bool as 1 byte, strings as raw bytes.

// ContentHash returns keccak256(templateID ‖ openingTS ‖ question).
func ContentHash(templateID uint64, openingTS uint32, question string) common.Hash {
	return ethcrypto.Keccak256Hash(
		amountBytes(uint256.NewInt(templateID)),
		uint32Bytes(openingTS),
		[]byte(question),
	)
}

// QuestionID returns keccak256(contentHash ‖ arbitrator ‖ timeout ‖ asker ‖ nonce).
func QuestionID(contentHash common.Hash, arbitrator common.Address, timeout uint32, asker common.Address, nonce *uint256.Int) common.Hash {
	return ethcrypto.Keccak256Hash(
		contentHash.Bytes(),
		arbitrator.Bytes(),
		uint32Bytes(timeout),
		asker.Bytes(),
		amountBytes(nonce),
	)
}

// NextHistoryHash folds one answer into a question's running history hash:
//
//	keccak256(prev ‖ answerOrCommitmentID ‖ bond ‖ answerer ‖ isCommitment)
func NextHistoryHash(prev, answerOrCommitmentID common.Hash, bond *uint256.Int, answerer common.Address, isCommitment bool) common.Hash {
	flag := []byte{0}
	if isCommitment {
		flag[0] = 1
	}
	return ethcrypto.Keccak256Hash(
		prev.Bytes(),
		answerOrCommitmentID.Bytes(),
		amountBytes(bond),
		answerer.Bytes(),
		flag,
	)
}

// AnswerHash returns keccak256(answer ‖ nonce), the value a committer hides.
func AnswerHash(answer common.Hash, nonce *uint256.Int) common.Hash {
	return ethcrypto.Keccak256Hash(answer.Bytes(), amountBytes(nonce))
}

// CommitmentID returns keccak256(questionID ‖ answerHash ‖ bond).
func CommitmentID(questionID, answerHash common.Hash, bond *uint256.Int) common.Hash {
	return ethcrypto.Keccak256Hash(questionID.Bytes(), answerHash.Bytes(), amountBytes(bond))
}

// amountBytes returns the 32-byte big-endian representation of v.
func amountBytes(v *uint256.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	b := v.Bytes32()
	return b[:]
}

func uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
