package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden     ErrCode = "FORBIDDEN"
	ErrRoleForbidden ErrCode = "ROLE_FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Ordering ──────────────────────────────────────────────────────
	ErrInvalidIndex      ErrCode = "INVALID_INDEX"
	ErrReorderInProgress ErrCode = "REORDER_IN_PROGRESS"
	ErrReorderFailed     ErrCode = "REORDER_FAILED"

	// ─── Blocks & Submissions ──────────────────────────────────────────
	ErrInvalidBlockData ErrCode = "INVALID_BLOCK_DATA"
	ErrInvalidAnswer    ErrCode = "INVALID_ANSWER"
	ErrWrongBlockType   ErrCode = "WRONG_BLOCK_TYPE"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrStorageFailed   ErrCode = "STORAGE_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email atau kata sandi salah."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrRoleForbidden:
		return "Peran Anda tidak diizinkan melakukan tindakan ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Ordering ──────────────────────────────────────────────────────
	case ErrInvalidIndex:
		return "Indeks urutan di luar jangkauan."
	case ErrReorderInProgress:
		return "Urutan daftar ini sedang diubah oleh pengguna lain. Silakan coba lagi."
	case ErrReorderFailed:
		return "Perubahan urutan gagal disimpan. Urutan sebelumnya dipertahankan."

	// ─── Blocks & Submissions ──────────────────────────────────────────
	case ErrInvalidBlockData:
		return "Data blok tidak sesuai dengan jenisnya."
	case ErrInvalidAnswer:
		return "Jawaban tidak sesuai dengan jenis blok."
	case ErrWrongBlockType:
		return "Tindakan ini tidak didukung untuk jenis blok ini."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "Unggah file diperlukan."
	case ErrUnsupportedFile:
		return "Jenis file tidak didukung."
	case ErrFileTooLarge:
		return "Ukuran file melebihi batas."
	case ErrStorageFailed:
		return "Penyimpanan file gagal. Silakan coba lagi."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
