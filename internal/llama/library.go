package llama

// LibraryEnv names the directory holding the llama.cpp shared libraries.
const LibraryEnv = "FOODALLERGENS_LLAMA_LIB"

// DefaultLibraryDir is used when neither LibraryEnv nor config names one.
const DefaultLibraryDir = "./lib/llama"
