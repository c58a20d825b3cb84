package persistence

import (
	"github.com/AntanasZilinskas/fd2p/domain/title"
	"github.com/AntanasZilinskas/fd2p/internal/database"
)

// TitleModel is a row of the titles table. The table name is configurable,
// so it is applied per query rather than through TableName.
type TitleModel struct {
	ID             int64             `gorm:"column:id;primaryKey;autoIncrement:false"`
	Title          string            `gorm:"column:title"`
	TitleEmbedding database.PgVector `gorm:"column:title_embedding;type:vector"`
}

// titleMapper maps between title.Record and TitleModel.
type titleMapper struct{}

// ToDomain converts a TitleModel to a title.Record.
func (titleMapper) ToDomain(m TitleModel) title.Record {
	return title.ReconstructRecord(m.ID, m.Title, m.TitleEmbedding.Floats())
}

// ToModel converts a title.Record to a TitleModel.
func (titleMapper) ToModel(r title.Record) TitleModel {
	return TitleModel{
		ID:             r.ID(),
		Title:          r.Title(),
		TitleEmbedding: database.NewPgVector(r.Embedding()),
	}
}
