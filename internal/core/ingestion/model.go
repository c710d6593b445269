package ingestion

import "path"

// EntryType はツリーエントリの種別
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// FileDescriptor はツリープロバイダが返すエントリ
// 生成後は変更しない
type FileDescriptor struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Type        EntryType `json:"type"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// Filename はアップロード時に使うファイル名（パスの末尾要素）を返す
func (d FileDescriptor) Filename() string {
	if d.Name != "" {
		return d.Name
	}
	return path.Base(d.Path)
}

// Listing はディレクトリ一覧の1ページ分
type Listing struct {
	Entries []FileDescriptor
	// NextPage は次ページの参照（空なら最終ページ）
	NextPage string
}

// SkipReason は内容検証でファイルを取り込まなかった理由
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipEmpty         SkipReason = "empty"
	SkipNonUTF8       SkipReason = "non-utf8"
	SkipNoDownloadURL SkipReason = "no-download-url"
)

// UploadResult は1ファイル分の結果
// ArtifactID と Error のどちらか一方だけが設定される（検証スキップ時はどちらも空）
type UploadResult struct {
	Path       string
	ArtifactID string
	Error      string
	Skipped    SkipReason
	Tokens     int
}

const (
	messageNothingUploaded = "No supported files uploaded."
	messageFinished        = "Finished attempting to upload & attach files."
)

// UploadReport は一括アップロードの集計結果
type UploadReport struct {
	AttachedIDs []string   `json:"attached_file_ids"`
	Errors      []string   `json:"errors"`
	Skipped     int        `json:"skipped"`
	Processed   int        `json:"processed"`
	TotalTokens int        `json:"total_tokens"`
	SkipCounts  SkipCounts `json:"skip_counts,omitempty"`
}

// SkipCounts は理由別のスキップ件数
type SkipCounts map[SkipReason]int

// Message は結果の要約メッセージを返す
func (r *UploadReport) Message() string {
	if len(r.AttachedIDs) == 0 && len(r.Errors) == 0 {
		return messageNothingUploaded
	}
	return messageFinished
}

func (r *UploadReport) add(res UploadResult) {
	r.Processed++
	switch {
	case res.ArtifactID != "":
		r.AttachedIDs = append(r.AttachedIDs, res.ArtifactID)
		r.TotalTokens += res.Tokens
	case res.Error != "":
		r.Errors = append(r.Errors, res.Error)
	default:
		r.Skipped++
		if r.SkipCounts == nil {
			r.SkipCounts = make(SkipCounts)
		}
		r.SkipCounts[res.Skipped]++
	}
}
