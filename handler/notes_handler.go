package handler

import (
	"fmt"
	"io"
	"mime/multipart"

	"gradient/dto"
	"gradient/model"
	"gradient/services"
	"gradient/usecase"
	"gradient/utils"

	"github.com/gin-gonic/gin"
)

// readUploads pairs the multipart files[] with their types[] entries.
func readUploads(c *gin.Context, types []string, maxBytes int64) ([]services.PendingUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// JSON and urlencoded bodies carry no media
		return nil, nil
	}
	files := form.File["files[]"]
	if len(files) != len(types) {
		return nil, fmt.Errorf("got %d files and %d types", len(files), len(types))
	}

	uploads := make([]services.PendingUpload, 0, len(files))
	for i, fh := range files {
		kind := model.AttachmentType(types[i])
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown media type %q", types[i])
		}
		if maxBytes > 0 && fh.Size > maxBytes {
			return nil, fmt.Errorf("%s exceeds the upload limit", fh.Filename)
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, services.PendingUpload{Data: data, Type: kind})
	}
	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func ListNotesHandler(c *gin.Context, projects *usecase.ProjectsService, notes *usecase.NotesService) {
	projectID, ok := requireProject(c, projects)
	if !ok {
		return
	}
	list, err := notes.ListNotes(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, "list notes", err, nil)
		return
	}
	utils.Success(c, dto.ToNoteResponses(list))
}

func StreamNotesHandler(c *gin.Context, projects *usecase.ProjectsService, notes *usecase.NotesService) {
	projectID, ok := requireProject(c, projects)
	if !ok {
		return
	}
	live, err := notes.WatchNotes(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, "watch notes", err, nil)
		return
	}
	streamList(c, live, "notes", dto.ToNoteResponses)
}

// CreateNoteHandler accepts JSON or a multipart form with media in files[].
func CreateNoteHandler(c *gin.Context, projects *usecase.ProjectsService, notes *usecase.NotesService, maxUpload int64) {
	projectID, ok := requireProject(c, projects)
	if !ok {
		return
	}
	var form dto.NoteForm
	if err := c.ShouldBind(&form); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}
	uploads, err := readUploads(c, form.Types, maxUpload)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	note := form.ToModel("", projectID)
	if err := notes.CreateNote(c.Request.Context(), note, uploads); err != nil {
		respondError(c, "create note", err, dto.ToNoteResponse(note))
		return
	}
	utils.Created(c, dto.ToNoteResponse(note))
}

// UpdateNoteHandler rewrites a note. Attachments not listed in keep[] are
// dropped when keep[] is present, clear_attachments=true drops them all, and
// files[] are appended.
func UpdateNoteHandler(c *gin.Context, notes *usecase.NotesService, maxUpload int64) {
	ctx := c.Request.Context()
	current, err := notes.GetNote(ctx, c.Param("id"))
	if err != nil {
		respondError(c, "load note", err, nil)
		return
	}

	var form dto.NoteForm
	if err := c.ShouldBind(&form); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}
	uploads, err := readUploads(c, form.Types, maxUpload)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	note := form.ToModel(current.ID, current.ProjectID)
	note.Attachments = form.KeepAttachments(current.Attachments)
	if err := notes.UpdateNote(ctx, note, uploads); err != nil {
		respondError(c, "update note", err, nil)
		return
	}
	utils.Success(c, dto.ToNoteResponse(note))
}

func DeleteNoteHandler(c *gin.Context, notes *usecase.NotesService) {
	id := c.Param("id")
	if err := notes.DeleteNote(c.Request.Context(), id); err != nil {
		respondError(c, "delete note", err, gin.H{"id": id, "deleted": true})
		return
	}
	utils.Success(c, gin.H{"id": id, "deleted": true})
}
