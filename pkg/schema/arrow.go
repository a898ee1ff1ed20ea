package schema

import (
	"os"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/ipc"
	"github.com/apache/arrow/go/arrow/memory"
)

// GetCorpusArrowSchema returns the Arrow schema for CorpusRecord
func GetCorpusArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "doc_id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "title", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "text", Type: arrow.BinaryTypes.String, Nullable: false},
	}, nil)
}

// WriteCorpusToArrowIPC writes a corpus batch to an Arrow IPC stream file
func WriteCorpusToArrowIPC(filePath string, records []CorpusRecord) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	schema := GetCorpusArrowSchema()
	w := ipc.NewWriter(file, ipc.WithSchema(schema))
	defer w.Close()

	batch, err := corpusToArrowBatch(records, memory.NewGoAllocator())
	if err != nil {
		return err
	}

	if err := w.Write(batch); err != nil {
		return err
	}

	return nil
}

// corpusToArrowBatch converts CorpusRecords to an Arrow Record
func corpusToArrowBatch(records []CorpusRecord, mem memory.Allocator) (array.Record, error) {
	schema := GetCorpusArrowSchema()

	docIDBuilder := array.NewStringBuilder(mem)
	defer docIDBuilder.Release()

	titleBuilder := array.NewStringBuilder(mem)
	defer titleBuilder.Release()

	textBuilder := array.NewStringBuilder(mem)
	defer textBuilder.Release()

	for _, record := range records {
		docIDBuilder.Append(record.DocID)
		titleBuilder.Append(record.Title)
		textBuilder.Append(record.Text)
	}

	docIDArr := docIDBuilder.NewArray()
	defer docIDArr.Release()

	titleArr := titleBuilder.NewArray()
	defer titleArr.Release()

	textArr := textBuilder.NewArray()
	defer textArr.Release()

	var cols []array.Interface
	cols = append(cols, docIDArr, titleArr, textArr)

	return array.NewRecord(schema, cols, int64(len(records))), nil
}

// ReadCorpusFromArrowIPC reads CorpusRecords from an Arrow IPC stream file
func ReadCorpusFromArrowIPC(filePath string) ([]CorpusRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r, err := ipc.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer r.Release()

	var records []CorpusRecord

	for r.Next() {
		batch := r.Record()
		docs, err := arrowBatchToCorpus(batch)
		if err != nil {
			return nil, err
		}
		records = append(records, docs...)
	}

	if err := r.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// arrowBatchToCorpus converts an Arrow Record to CorpusRecords
func arrowBatchToCorpus(batch array.Record) ([]CorpusRecord, error) {
	var records []CorpusRecord

	docIDCol := batch.Column(0).(*array.String)
	titleCol := batch.Column(1).(*array.String)
	textCol := batch.Column(2).(*array.String)

	for i := 0; i < int(batch.NumRows()); i++ {
		records = append(records, CorpusRecord{
			DocID: docIDCol.Value(i),
			Title: titleCol.Value(i),
			Text:  textCol.Value(i),
		})
	}

	return records, nil
}
